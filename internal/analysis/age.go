package analysis

type threshold struct {
	above int
	age   int
}

var (
	nsfwLadder = []threshold{{60, 18}, {40, 16}, {20, 13}, {10, 10}}
	// violence and scary share a ladder.
	intensityLadder = []threshold{{70, 13}, {50, 10}, {30, 7}, {15, 5}}
)

const (
	minimumAge   = 3
	profanityAge = 10
)

// AgeRecommendation derives the minimum suitable age from the worst-case scores.
// Each score is checked against its own ladder and the strictest result wins.
func AgeRecommendation(violence, scary, nsfw int, profanity bool) int {
	age := minimumAge
	age = max(age, climb(nsfwLadder, nsfw))
	age = max(age, climb(intensityLadder, violence))
	age = max(age, climb(intensityLadder, scary))
	if profanity {
		age = max(age, profanityAge)
	}
	return age
}

func climb(ladder []threshold, score int) int {
	for _, step := range ladder {
		if score > step.above {
			return step.age
		}
	}
	return minimumAge
}
