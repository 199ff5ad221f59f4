package veo

// SubmitRequest contains parameters for submitting a generation operation.
type SubmitRequest struct {
	// Prompt is the synthesis prompt text.
	Prompt string
	// ImageBytes is an optional reference still image steering the first frame.
	ImageBytes []byte
	// ImageMIMEType is the reference image MIME type, e.g. "image/png".
	ImageMIMEType string
}

// PollResult contains the result of polling an operation's status.
type PollResult struct {
	// Done reports whether the operation reached a terminal state.
	Done bool
	// VideoURI is the download URI of the generated clip, set when Done
	// and a clip was produced.
	VideoURI string
	// Error is the service error message, set when Done and the operation failed.
	Error string
}

// predictRequest is the request body for a predictLongRunning call.
type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string        `json:"prompt"`
	Image  *predictImage `json:"image,omitempty"`
}

type predictImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MIMEType           string `json:"mimeType"`
}

type predictParameters struct {
	AspectRatio      string `json:"aspectRatio"`
	DurationSeconds  int    `json:"durationSeconds"`
	SampleCount      int    `json:"sampleCount"`
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
}

// operationResponse is the response body of submit and poll calls.
type operationResponse struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Response *operationResult   `json:"response,omitempty"`
	Error    *operationAPIError `json:"error,omitempty"`
}

type operationResult struct {
	GenerateVideoResponse *generateVideoResponse `json:"generateVideoResponse,omitempty"`
}

type generateVideoResponse struct {
	GeneratedSamples []generatedSample `json:"generatedSamples"`
}

type generatedSample struct {
	Video videoRef `json:"video"`
}

type videoRef struct {
	URI string `json:"uri"`
}

type operationAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
