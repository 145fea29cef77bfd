package progression

import "sort"

// Rank is a cosmetic tier derived from level.
type Rank struct {
	MinLevel int
	Name     string
	Color    int
}

// Ranks is sorted by MinLevel, ascending. The first entry must start at 0.
var Ranks = []Rank{
	{MinLevel: 0, Name: "👶 Newbie", Color: 0x95a5a6},
	{MinLevel: 1, Name: "🟢 Script Kiddie", Color: 0x2ecc71},
	{MinLevel: 5, Name: "🔵 Junior Hacker", Color: 0x3498db},
	{MinLevel: 10, Name: "🟣 Hacker", Color: 0x9b59b6},
	{MinLevel: 15, Name: "🟠 Advanced Hacker", Color: 0xe67e22},
	{MinLevel: 20, Name: "🔴 Elite Hacker", Color: 0xe74c3c},
	{MinLevel: 30, Name: "👑 Cyber God", Color: 0xf1c40f},
}

// RankFor returns the highest rank whose MinLevel is <= level.
func RankFor(level int) Rank {
	i := sort.Search(len(Ranks), func(i int) bool { return Ranks[i].MinLevel > level })
	if i == 0 {
		return Ranks[0]
	}
	return Ranks[i-1]
}

// IsRankName reports whether name belongs to a rank, used to find stale rank
// roles on a member.
func IsRankName(name string) bool {
	for _, r := range Ranks {
		if r.Name == name {
			return true
		}
	}
	return false
}

// TopRank is the highest rank in the table.
func TopRank() Rank {
	return Ranks[len(Ranks)-1]
}
