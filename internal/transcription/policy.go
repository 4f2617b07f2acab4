package transcription

// Policy describes how the worker resolves a classified failure.
type Policy struct {
	// Retriable failures re-enqueue the job at the tail of the queue until
	// MaxAttempts total attempts have been consumed.
	Retriable bool
	// MaxAttempts is the total attempt budget, including the first attempt.
	MaxAttempts int
	// Escalate writes an escalation record on the first permanent failure.
	// Retriable kinds escalate only once their attempt budget is exhausted.
	Escalate bool
}

// Failures with an external cause that a later attempt cannot fix resolve
// to a placeholder immediately. Timeouts and model process errors get one
// more try because both are occasionally load-induced.
var policies = map[ErrorKind]Policy{
	KindFileNotFound:     {Retriable: false, MaxAttempts: 1, Escalate: true},
	KindFileUnreadable:   {Retriable: false, MaxAttempts: 1, Escalate: true},
	KindOOM:              {Retriable: false, MaxAttempts: 1, Escalate: true},
	KindTimeout:          {Retriable: true, MaxAttempts: 2, Escalate: false},
	KindCorruptAudio:     {Retriable: false, MaxAttempts: 1, Escalate: true},
	KindModelLoadFailure: {Retriable: false, MaxAttempts: 1, Escalate: true},
	KindWhisperError:     {Retriable: true, MaxAttempts: 2, Escalate: false},
	KindUnknown:          {Retriable: false, MaxAttempts: 1, Escalate: true},
}

// PolicyFor returns the resolution policy for kind. Unrecognized kinds get
// the UNKNOWN policy so resolution is always defined.
func PolicyFor(kind ErrorKind) Policy {
	if p, ok := policies[kind]; ok {
		return p
	}
	return policies[KindUnknown]
}
