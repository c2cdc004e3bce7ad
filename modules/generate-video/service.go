package generatevideo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"video-relay-server/modules/common/apperr"
	"video-relay-server/modules/common/breaker"
	"video-relay-server/modules/common/fallback"
	"video-relay-server/modules/common/logx"
	"video-relay-server/modules/common/metrics"
)

// DefaultPredictTimeout bounds the remote call when no timeout is configured.
const DefaultPredictTimeout = 120 * time.Second

// Predictor is the inference collaborator: one synchronous predict call on a deployed endpoint.
type Predictor interface {
	Predict(ctx context.Context, endpoint string, instances []interface{}) ([]interface{}, error)
}

// Options - Service 선택 구성 (nil 이면 비활성)
type Options struct {
	Timeout time.Duration
	Breaker *breaker.Breaker
	Metrics *metrics.Metrics
}

// Service relays prompts to the endpoint. It holds no per-request state.
type Service struct {
	predictor Predictor
	endpoint  string
	timeout   time.Duration
	breaker   *breaker.Breaker
	metrics   *metrics.Metrics
}

// NewService - Service 생성 (엔드포인트 이름은 여기서 한 번만 만든다)
func NewService(predictor Predictor, ref EndpointRef, opts Options) *Service {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultPredictTimeout
	}
	return &Service{
		predictor: predictor,
		endpoint:  ref.Name(),
		timeout:   timeout,
		breaker:   opts.Breaker,
		metrics:   opts.Metrics,
	}
}

// Endpoint returns the resource name every call is sent to.
func (s *Service) Endpoint() string {
	return s.endpoint
}

// GenerateVideo submits prompt as the only instance and returns the first prediction as the video url.
func (s *Service) GenerateVideo(ctx context.Context, prompt string) (*GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	instances := []interface{}{
		map[string]interface{}{"prompt": prompt},
	}

	logx.Log.Debug().Str("endpoint", s.endpoint).Str("prompt", prompt).Msg("🎬 [GenerateVideo] predict request")

	start := time.Now()
	var predictions []interface{}
	err := s.breaker.Execute(ctx, func() error {
		var err error
		predictions, err = s.predictor.Predict(ctx, s.endpoint, instances)
		return err
	})
	elapsed := time.Since(start)

	if err != nil {
		appErr, outcome := classifyRemoteError(err)
		s.metrics.ObservePredict(outcome, elapsed)
		evt := logx.Log.Error()
		if outcome == metrics.OutcomeCanceled {
			evt = logx.Log.Warn()
		}
		evt.Err(err).
			Str("endpoint", s.endpoint).
			Str("outcome", outcome).
			Dur("elapsed", elapsed).
			Msg("❌ [GenerateVideo] predict failed")
		return nil, appErr
	}

	if len(predictions) == 0 {
		s.metrics.ObservePredict(metrics.OutcomeEmptyResult, elapsed)
		logx.Log.Error().Str("endpoint", s.endpoint).Msg("❌ [GenerateVideo] empty predictions")
		return nil, apperr.EmptyResult()
	}

	videoURL, err := extractVideoURL(predictions[0])
	if err != nil {
		s.metrics.ObservePredict(metrics.OutcomeMalformedResult, elapsed)
		logx.Log.Error().Err(err).Str("endpoint", s.endpoint).Msg("❌ [GenerateVideo] malformed prediction")
		return nil, err
	}

	s.metrics.ObservePredict(metrics.OutcomeSuccess, elapsed)
	logx.Log.Info().
		Str("endpoint", s.endpoint).
		Int("predictions", len(predictions)).
		Dur("elapsed", elapsed).
		Msg("✅ [GenerateVideo] predict completed")

	return &GenerationResult{VideoURL: videoURL}, nil
}

// extractVideoURL accepts a plain string or an object carrying one of videoURLKeys.
func extractVideoURL(prediction interface{}) (string, error) {
	switch v := prediction.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", apperr.MalformedResult("first prediction is an empty string")
		}
		return v, nil
	case map[string]interface{}:
		if url, ok := fallback.FirstString(v, videoURLKeys...); ok {
			return url, nil
		}
		return "", apperr.MalformedResult("first prediction has no video url field")
	default:
		return "", apperr.MalformedResult(fmt.Sprintf("first prediction has unexpected type %T", prediction))
	}
}

// classifyRemoteError maps a predict failure to the error returned to the caller and a metric outcome.
func classifyRemoteError(err error) (*apperr.AppError, string) {
	if errors.Is(err, breaker.ErrOpen) {
		return apperr.ServiceUnavailable(err), metrics.OutcomeCircuitOpen
	}
	if errors.Is(err, context.Canceled) {
		return apperr.Canceled(err), metrics.OutcomeCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.RemoteTimeout(err), metrics.OutcomeTimeout
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return apperr.RateLimited(err), metrics.OutcomeRemoteError
	}
	return apperr.RemoteCallFailed(err), metrics.OutcomeRemoteError
}

// IsRemoteFailure reports whether err should count against the circuit breaker.
// Callers that went away and requests the endpoint rejected (4xx other than 429)
// are not the endpoint's fault.
func IsRemoteFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 {
		return apiErr.Code == http.StatusTooManyRequests
	}
	return true
}
