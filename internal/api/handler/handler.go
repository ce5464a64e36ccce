package handler

import (
	"github.com/danikhandev/serve-u/internal/chathub"
	"github.com/danikhandev/serve-u/internal/config"
	"github.com/danikhandev/serve-u/internal/media"
	"github.com/danikhandev/serve-u/internal/storage"

	"go.uber.org/zap"
)

// Handler carries the collaborators every route needs.
type Handler struct {
	Hub   *chathub.Hub
	Store storage.Store
	Media media.Store
	Cfg   *config.Config
	Log   *zap.Logger
}

func NewHandler(hub *chathub.Hub, store storage.Store, mediaStore media.Store, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{Hub: hub, Store: store, Media: mediaStore, Cfg: cfg, Log: log}
}
