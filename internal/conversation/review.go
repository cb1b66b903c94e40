package conversation

// LowConfidenceThreshold is the transcript confidence below which a turn is
// flagged for human review.
const LowConfidenceThreshold = 0.6

// Evaluate derives the review flags from a transcription result:
// lowConfidence when the overall confidence is below the threshold, and
// needsReview when the transcript is low-confidence or recognised no words at
// all. The flags are advisory — they never block the pipeline; they are
// surfaced to the confirmation step so a human can correct the transcript
// before it is used downstream.
func Evaluate(confidence float64, wordCount int) (lowConfidence, needsReview bool) {
	lowConfidence = confidence < LowConfidenceThreshold
	needsReview = lowConfidence || wordCount == 0
	return lowConfidence, needsReview
}
