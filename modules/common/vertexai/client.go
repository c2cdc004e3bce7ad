package vertexai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	aiplatform "google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/option"

	"video-relay-server/modules/common/config"
	"video-relay-server/modules/common/logx"
)

// EndpointName - 배포된 엔드포인트의 리소스 이름
func EndpointName(project, region, endpointID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/endpoints/%s", project, region, endpointID)
}

// RegionalAPIEndpoint - 리전별 Vertex AI API 호스트
func RegionalAPIEndpoint(region string) string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/", region)
}

// ClientOptions - 인증 옵션 구성 (환경 변수 자동 처리)
func ClientOptions(cfg *config.Config) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	// 1. VERTEXAI_CREDENTIALS_JSON (배포용)
	if cfg.CredentialsJSON != "" {
		logx.Log.Info().Msg("✅ [VertexAI] Using VERTEXAI_CREDENTIALS_JSON from environment")
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		return opts, nil
	}

	// 2. VERTEXAI_CREDENTIALS_PATH (로컬 테스트용)
	if cfg.CredentialsPath != "" {
		logx.Log.Info().Str("path", cfg.CredentialsPath).Msg("✅ [VertexAI] Using credentials from file")
		credsData, err := os.ReadFile(cfg.CredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		var creds map[string]interface{}
		if err := json.Unmarshal(credsData, &creds); err != nil {
			return nil, fmt.Errorf("invalid JSON credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(credsData))
		return opts, nil
	}

	// 3. Application Default Credentials
	logx.Log.Warn().Msg("⚠️  [VertexAI] No explicit credentials found, using Application Default Credentials")
	return opts, nil
}

// PredictionClient calls online prediction on deployed Vertex AI endpoints.
// It is safe for concurrent use.
type PredictionClient struct {
	endpoints *aiplatform.ProjectsLocationsEndpointsService
}

// NewPredictionClient - Vertex AI Prediction 클라이언트 생성
// extra options are appended last and win over the configured ones.
func NewPredictionClient(ctx context.Context, cfg *config.Config, extra ...option.ClientOption) (*PredictionClient, error) {
	opts, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	apiEndpoint := cfg.APIEndpoint
	if apiEndpoint == "" {
		apiEndpoint = RegionalAPIEndpoint(cfg.Region)
	}
	opts = append(opts, option.WithEndpoint(apiEndpoint))
	opts = append(opts, extra...)

	svc, err := aiplatform.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	logx.Log.Info().
		Str("project", cfg.ProjectID).
		Str("location", cfg.Region).
		Str("api_endpoint", apiEndpoint).
		Msg("✅ [VertexAI] Prediction client initialized")

	return &PredictionClient{endpoints: svc.Projects.Locations.Endpoints}, nil
}

// Predict sends instances to endpoint and returns the predictions in service order.
func (c *PredictionClient) Predict(ctx context.Context, endpoint string, instances []interface{}) ([]interface{}, error) {
	req := &aiplatform.GoogleCloudAiplatformV1PredictRequest{Instances: instances}

	resp, err := c.endpoints.Predict(endpoint, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", endpoint, err)
	}
	return resp.Predictions, nil
}
