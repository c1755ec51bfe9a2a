package ir

// Version constants for the IR encoding and the rewriter.
const (
	// IRVersion is the encoded document schema version.
	IRVersion = "1"

	// RewriterVersion is the loopsmith rewriter version.
	RewriterVersion = "0.1.0"
)
