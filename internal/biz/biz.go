package biz

import (
	"github.com/shadowbotshq/whisper-relay/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Whisper  *usecase.WhisperUsecase
	Creation *usecase.CreationFlowUsecase
	User     *usecase.UserUsecase
}
