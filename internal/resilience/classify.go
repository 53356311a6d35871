package resilience

// Error classes reported on failed lead results.
const (
	ClassTransient = "transient"
	ClassPermanent = "permanent"
)

// ClassifyError categorizes an error as transient (worth re-running the
// lead later) or permanent (the input must be fixed first).
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ClassTransient
	}
	return ClassPermanent
}
