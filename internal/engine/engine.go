package engine

import (
	"database/sql"
	"time"

	"caseline/internal/config"
	"caseline/internal/events"
	"caseline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Skill  SkillScorer
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Skill:  WeightedSkillScorer{Bonus: cfg.Scoring.ExtraSkillBonus, Cap: cfg.Scoring.ExtraSkillCap},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}
