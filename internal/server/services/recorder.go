package services

// Recorder receives domain events for metrics. *metrics.Metrics implements it.
type Recorder interface {
	LedgerOperation(op, result string, tokens int64)
	PassportIssued()
	PassportRedemption(result string)
	MagicLink(event string)
}

type nopRecorder struct{}

func (nopRecorder) LedgerOperation(string, string, int64) {}
func (nopRecorder) PassportIssued()                       {}
func (nopRecorder) PassportRedemption(string)             {}
func (nopRecorder) MagicLink(string)                      {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// Result labels shared with the metrics package.
const (
	ResultOK           = "ok"
	ResultReplayed     = "replayed"
	ResultInsufficient = "insufficient"
	ResultRejected     = "rejected"
	ResultInvalid      = "invalid"
	ResultError        = "error"
)
