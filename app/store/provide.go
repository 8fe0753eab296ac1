package store

import (
	"moodmate/app/config"

	"github.com/samber/do"
)

func New(di *do.Injector) (Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if cfg.DB.UseMemory {
		return NewMemoryStore(), nil
	}

	return NewPostgresStore(cfg.DB)
}
