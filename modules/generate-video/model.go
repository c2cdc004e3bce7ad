package generatevideo

import "video-relay-server/modules/common/vertexai"

// GenerationRequest - 영상 생성 요청 (prompt 만 받음)
type GenerationRequest struct {
	Prompt string `json:"prompt"`
}

// GenerationResult - 영상 생성 결과
type GenerationResult struct {
	VideoURL string `json:"video_url"`
}

// EndpointRef - 호출할 Vertex AI 엔드포인트 (시작 시 한 번 구성, 불변)
type EndpointRef struct {
	Project    string
	Region     string
	EndpointID string
}

// Name - projects/{project}/locations/{region}/endpoints/{endpoint_id}
func (e EndpointRef) Name() string {
	return vertexai.EndpointName(e.Project, e.Region, e.EndpointID)
}

// videoURLKeys are checked in order when the first prediction is an object.
var videoURLKeys = []string{"video_url", "videoUrl", "uri", "gcsUri", "url"}
