package generatevideo

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"video-relay-server/modules/common/apperr"
	"video-relay-server/modules/common/logx"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GenerateVideo - POST /generate-video
// prompt 를 Vertex AI 엔드포인트로 전달하고 첫 번째 prediction 을 video_url 로 반환
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	prompt, err := bindPrompt(w, r)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	// 빈 prompt 는 원격 호출 없이 거절
	if strings.TrimSpace(prompt) == "" {
		apperr.WriteJSON(w, apperr.InvalidRequest("prompt is required"))
		return
	}

	result, err := h.service.GenerateVideo(r.Context(), prompt)
	if err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logx.Log.Warn().Err(err).Msg("⚠️  [GenerateVideo] failed to write response")
	}
}

// bindPrompt reads prompt from the query string or form first, then from a JSON body.
func bindPrompt(w http.ResponseWriter, r *http.Request) (string, error) {
	if q := r.URL.Query(); q.Has("prompt") {
		return q.Get("prompt"), nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
				return "", apperr.InvalidRequest("invalid form body")
			}
		} else if err := r.ParseForm(); err != nil {
			return "", apperr.InvalidRequest("invalid form body")
		}
		return r.PostFormValue("prompt"), nil

	case "application/json":
		var req GenerationRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			return "", apperr.InvalidRequest("invalid JSON body")
		}
		return req.Prompt, nil
	}

	return "", nil
}
