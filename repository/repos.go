package repository

import (
	"github.com/poanetwork/layer-bridge/db"
	"github.com/poanetwork/layer-bridge/entity"
	"github.com/poanetwork/layer-bridge/repository/memory"
	"github.com/poanetwork/layer-bridge/repository/postgres"
)

type Repo struct {
	Messages entity.MessagesRepo
	Swaps    entity.SwapsRepo
	Cursors  entity.CursorsRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		Messages: postgres.NewMessagesRepo("messages", "used_commitments", db),
		Swaps:    postgres.NewSwapsRepo("swaps", db),
		Cursors:  postgres.NewCursorsRepo("cursors", db),
	}
}

// NewMemoryRepo returns a per-process store; its content is lost on restart.
func NewMemoryRepo() *Repo {
	return &Repo{
		Messages: memory.NewMessagesRepo(),
		Swaps:    memory.NewSwapsRepo(),
		Cursors:  memory.NewCursorsRepo(),
	}
}
