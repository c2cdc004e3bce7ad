package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"video-relay-server/modules/common/breaker"
	"video-relay-server/modules/common/config"
	"video-relay-server/modules/common/logx"
	"video-relay-server/modules/common/metrics"
	"video-relay-server/modules/common/middleware"
	"video-relay-server/modules/common/vertexai"
	generatevideo "video-relay-server/modules/generate-video"
)

const serviceName = "video-relay-server"

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

// newHandler - 라우터 + 미들웨어 구성
func newHandler(cfg *config.Config, videoHandler *generatevideo.Handler, m *metrics.Metrics) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.CaptureRoute)

	r.HandleFunc("/", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/generate-video", videoHandler.GenerateVideo).Methods(http.MethodPost)

	// CORS 는 라우터 바깥에서 처리 (preflight 가 라우트 매칭 전에 응답되도록)
	withCORS := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})(r)

	// 404/405 도 request id, 로그, 메트릭을 거치도록 라우터 전체를 감싼다
	return middleware.RequestID(middleware.Logging(m)(middleware.Recovery(withCORS)))
}

// newService - 예측 클라이언트, circuit breaker, 메트릭을 묶어서 Service 생성
func newService(cfg *config.Config, predictor generatevideo.Predictor, m *metrics.Metrics) *generatevideo.Service {
	var b *breaker.Breaker
	if cfg.BreakerEnabled {
		const breakerName = "vertexai-predict"
		b = breaker.New(breakerName, breaker.Settings{
			FailureThreshold: cfg.BreakerFailureThreshold,
			OpenTimeout:      cfg.BreakerOpenTimeout,
			IsFailure:        generatevideo.IsRemoteFailure,
			OnStateChange: func(name, _, to string) {
				m.SetBreakerState(name, to)
			},
		})
		m.SetBreakerState(breakerName, b.State())
	}

	ref := generatevideo.EndpointRef{
		Project:    cfg.ProjectID,
		Region:     cfg.Region,
		EndpointID: cfg.EndpointID,
	}
	return generatevideo.NewService(predictor, ref, generatevideo.Options{
		Timeout: cfg.PredictTimeout,
		Breaker: b,
		Metrics: m,
	})
}

func main() {
	// 환경변수 로드 (project/region 없으면 트래픽 받기 전에 종료)
	cfg, err := config.LoadConfig()
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("❌ Failed to load config")
	}
	logx.Configure(cfg.LogLevel)

	if cfg.EndpointID == config.DefaultEndpointID {
		logx.Log.Warn().Msg("⚠️  VERTEXAI_ENDPOINT_ID not set, using placeholder endpoint id")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := vertexai.NewPredictionClient(ctx, cfg)
	if err != nil {
		logx.Log.Fatal().Err(err).Msg("❌ Failed to create Vertex AI client")
	}

	m := metrics.New("")
	service := newService(cfg, client, m)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      newHandler(cfg, generatevideo.NewHandler(service), m),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	logx.Log.Info().
		Str("addr", srv.Addr).
		Str("endpoint", service.Endpoint()).
		Dur("predict_timeout", cfg.PredictTimeout).
		Bool("breaker", cfg.BreakerEnabled).
		Msg("🚀 Video relay server starting")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logx.Log.Fatal().Err(err).Msg("❌ Server failed to start")
		}
	case <-ctx.Done():
		logx.Log.Info().Msg("🛑 Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Log.Error().Err(err).Msg("❌ Graceful shutdown failed")
		return
	}
	logx.Log.Info().Msg("✅ Server stopped")
}
