package transcription

// RecognizedSegment is one diarized utterance from the speech service.
// Segments are ephemeral: produced by FetchResults, consumed by Format,
// never persisted.
type RecognizedSegment struct {
	SpeakerID  string
	Text       string
	Confidence float64
}

// Transcription statuses reported by the speech service.
const (
	statusRunning   = "Running"
	statusSucceeded = "Succeeded"
	statusFailed    = "Failed"
)

// submitRequest is the batch-transcription submission body
// (speechtotext v3.2 wire format).
type submitRequest struct {
	ContentUrls []string         `json:"contentUrls"`
	Locale      string           `json:"locale"`
	DisplayName string           `json:"displayName"`
	Properties  submitProperties `json:"properties"`
}

type submitProperties struct {
	DiarizationEnabled     bool                   `json:"diarizationEnabled"`
	Speakers               speakerBounds          `json:"speakers"`
	LanguageIdentification languageIdentification `json:"languageIdentification"`
	ProfanityFilterMode    string                 `json:"profanityFilterMode"`
}

type speakerBounds struct {
	MinCount int `json:"minCount"`
	MaxCount int `json:"maxCount"`
}

type languageIdentification struct {
	CandidateLocales []string `json:"candidateLocales"`
}

// submitResponse carries the self-referential resource URL whose final
// path segment is the transcription handle. On validation errors the
// service responds with a message instead.
type submitResponse struct {
	Self    string `json:"self"`
	Message string `json:"message"`
}

// StatusPayload is the raw status document for one transcription. A
// Succeeded payload carries the links needed to fetch result files.
type StatusPayload struct {
	Status string `json:"status"`
	Links  struct {
		Files string `json:"files"`
	} `json:"links"`
	Error      serviceError `json:"error"`
	Properties struct {
		Error serviceError `json:"error"`
	} `json:"properties"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type filesPayload struct {
	Values []struct {
		Links struct {
			ContentURL string `json:"contentUrl"`
		} `json:"links"`
	} `json:"values"`
}

type resultPayload struct {
	RecognizedPhrases []recognizedPhrase `json:"recognizedPhrases"`
}

type recognizedPhrase struct {
	Speaker int           `json:"speaker"`
	NBest   []nBestResult `json:"nBest"`
}

type nBestResult struct {
	Display    string  `json:"display"`
	Confidence float64 `json:"confidence"`
}
