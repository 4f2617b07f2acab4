package whisper

// Config captures runtime settings for the local whisper.cpp model.
type Config struct {
	// Binary is the whisper-cli executable name or absolute path.
	Binary string
	// ModelPath points at a ggml model file; when empty, Model is resolved
	// against the default model directory.
	ModelPath string
	// Model is the model name used when ModelPath is empty (e.g. "base.en").
	Model string
	// Language is the transcription language hint.
	Language string
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
	// Threads caps worker threads; 0 lets the binary decide.
	Threads int
}

// Whisper configuration constants.
const (
	DefaultBinary = "whisper-cli"
	DefaultModel  = "base.en"

	// OutputFormat asks whisper-cli for a JSON transcript file.
	outputJSONFlag = "-oj"
	noPrintsFlag   = "-np"
)
