package metrics

// Status label values shared by the collectors.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
	StatusTimeout = "timeout"
)

// Frame drop reasons.
const (
	DropBusy     = "busy"
	DropInterval = "interval"
	DropInvalid  = "invalid"
	DropClosed   = "closed"
)

// Histogram buckets.
var (
	frameLatencyBuckets    = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}
	deliveryLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	dbLatencyBuckets       = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0}
)
