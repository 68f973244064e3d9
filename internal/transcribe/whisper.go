package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tweetscribe-go/internal/types"
)

// Whisper API upload ceiling (25MB).
const maxUploadBytes = 25 * 1024 * 1024

const fallbackModel = "whisper-1"

// WhisperConfig configures the OpenAI-compatible speech endpoint.
type WhisperConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Prompt      string
	Temperature *float64
}

// Whisper is the HTTP Model implementation. When the configured model is
// unknown to the account it retries once with the baseline whisper-1.
type Whisper struct {
	cfg    WhisperConfig
	client *http.Client
}

func NewWhisper(cfg WhisperConfig) (*Whisper, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini-transcribe"
	}
	return &Whisper{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (w *Whisper) Infer(ctx context.Context, wavData []byte, languageHint string) (Result, error) {
	if len(wavData) > maxUploadBytes {
		return Result{}, fmt.Errorf("audio window too large (%dMB, limit 25MB)", len(wavData)/1024/1024)
	}

	res, err := w.request(ctx, wavData, languageHint, w.cfg.Model)
	if err != nil && w.cfg.Model != fallbackModel && isUnknownModel(err) {
		return w.request(ctx, wavData, languageHint, fallbackModel)
	}
	return res, err
}

func (w *Whisper) request(ctx context.Context, wavData []byte, languageHint, model string) (Result, error) {
	endpoint := strings.TrimRight(w.cfg.BaseURL, "/") + "/v1/audio/transcriptions"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(wavData); err != nil {
		return Result{}, err
	}
	mw.WriteField("model", model)
	mw.WriteField("response_format", "verbose_json")
	mw.WriteField("timestamp_granularities[]", "segment")
	if languageHint != "" {
		mw.WriteField("language", languageHint)
	}
	if w.cfg.Prompt != "" {
		mw.WriteField("prompt", w.cfg.Prompt)
	}
	if w.cfg.Temperature != nil {
		mw.WriteField("temperature", strconv.FormatFloat(*w.cfg.Temperature, 'f', -1, 64))
	}
	if err := mw.Close(); err != nil {
		return Result{}, err
	}
	payload := body.Bytes()

	var resp verboseResponse
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)

		r, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer r.Body.Close()
		raw, _ := io.ReadAll(r.Body)

		if r.StatusCode >= 500 {
			lastErr = fmt.Errorf("speech api server error: %s", raw)
			return lastErr
		}
		if r.StatusCode >= 300 {
			lastErr = fmt.Errorf("speech api error %d: %s", r.StatusCode, apiErrMessage(raw))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			lastErr = fmt.Errorf("decode speech response: %w", err)
			return lastErr
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr != nil {
			return Result{}, lastErr
		}
		return Result{}, err
	}

	out := Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
	}
	for _, s := range resp.Segments {
		out.Segments = append(out.Segments, types.TranscriptSegment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	return out, nil
}

type verboseResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func isUnknownModel(err error) bool {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "model") {
		return false
	}
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "invalid")
}

func apiErrMessage(raw []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
