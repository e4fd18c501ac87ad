package analysis

import (
	"fmt"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/textutil"
)

const scoringGuide = `SCORING GUIDES:
- violence_score: 0-20=none/cartoon, 21-50=mild slapstick, 51-80=action violence, 81-100=graphic
- nsfw_score: 0-20=appropriate, 21-50=suggestive, 51-80=inappropriate, 81-100=explicit
- scary_score: 0-20=not scary, 21-40=tense, 41-60=monsters, 61-100=horror
- safety_score: 90-100=ages 5+, 70-89=ages 8+, 50-69=ages 11+, 30-49=ages 14+, 0-29=ages 17+
- profanity_detected: true ONLY if you HEAR profanity in audio

THEMES (only include what you ACTUALLY see):
educational, entertainment, religious, lgbtq, political, scary, romantic, action, musical, animated, live-action`

const fullVideoPrompt = `Analyze this video for child safety. Watch the ENTIRE video carefully.

` + scoringGuide + `

SUMMARY - Provide a brief overview of the video WITHOUT timestamps. Just describe what the video is about.

CONCERNS - List up to 10 concerns. For EACH concern provide:
- description: What happens (short, clear description)
- timestamp: The exact time as "M:SS" or "H:MM:SS" when it occurs in the video

POSITIVE ASPECTS - List up to 10 positive aspects. For EACH provide:
- description: What happens (short, clear description)
- timestamp: The exact time as "M:SS" or "H:MM:SS" when it occurs in the video

KEY MOMENTS - Identify 5-10 key moments with timestamps (both concerns AND positive moments):
- timestamp_seconds: The exact time in seconds from the start of the video
- timestamp_display: The timestamp in MM:SS format (e.g., "2:35" for 2 minutes 35 seconds)
- type: The category (violence, scary, nsfw, profanity, educational, positive)
- description: What happens at this moment (max 150 chars)
- severity: low, moderate, or high

For example, if you see violence at 155 seconds (2:35), record: timestamp_seconds=155, timestamp_display="2:35", type="violence", description="Character hits another with hammer", severity="moderate"`

const segmentPromptTemplate = `Analyze ONLY the time range %[1]s to %[2]s of this video for child safety.

IMPORTANT: Focus ONLY on content between %[1]s and %[2]s. This is segment %[3]d of %[4]d.

` + scoringGuide + `

SUMMARY - Brief overview of this segment WITHOUT timestamps.

CONCERNS - List up to 10 concerns. For EACH provide:
- description: What happens (short, clear description)
- timestamp: Exact time as "M:SS" or "H:MM:SS" from the START OF THE VIDEO

POSITIVE ASPECTS - List up to 10 positive aspects. For EACH provide:
- description: What happens (short, clear description)
- timestamp: Exact time as "M:SS" or "H:MM:SS" from the START OF THE VIDEO

KEY MOMENTS - Identify key moments with timestamps:
- timestamp_seconds: Exact time in seconds from the START OF THE VIDEO
- timestamp_display: Timestamp in MM:SS format
- type: violence, scary, nsfw, profanity, educational, or positive
- description: What happens (max 150 chars)
- severity: low, moderate, or high`

// FullVideoPrompt asks for an assessment of the whole video.
func FullVideoPrompt() string {
	return fullVideoPrompt
}

// SegmentPrompt restricts the model to one window while keeping timestamps relative to the
// start of the full video.
func SegmentPrompt(seg models.Segment, total int) string {
	return fmt.Sprintf(segmentPromptTemplate,
		textutil.FormatTimestamp(seg.StartSeconds),
		textutil.FormatTimestamp(seg.EndSeconds),
		seg.Index+1,
		total,
	)
}
