package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"uxcellence/models"
)

const eventStateID = 1

// GormStore is the relational Store. Conditional updates provide the
// check-and-set semantics for claims, spins and deletes.
type GormStore struct {
	db            *gorm.DB
	defaultRounds []models.Round
}

func NewGormStore(db *gorm.DB, defaultRounds []models.Round) *GormStore {
	return &GormStore{db: db, defaultRounds: defaultRounds}
}

// Migrate creates the tables and seeds the round set and event state.
func (s *GormStore) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(
		&models.Team{},
		&models.Question{},
		&models.Round{},
		&models.EventState{},
		&models.Countdown{},
		&models.AdminUser{},
		&models.SpinRecord{},
	); err != nil {
		return TransportError("migrate database", err)
	}

	var count int64
	if err := db.Model(&models.Round{}).Count(&count).Error; err != nil {
		return TransportError("count rounds", err)
	}
	if count == 0 && len(s.defaultRounds) > 0 {
		rounds := append([]models.Round(nil), s.defaultRounds...)
		if err := db.Create(&rounds).Error; err != nil {
			return TransportError("seed rounds", err)
		}
	}

	state := models.EventState{ID: eventStateID, CurrentRound: 1}
	if err := db.FirstOrCreate(&state, models.EventState{ID: eventStateID}).Error; err != nil {
		return TransportError("seed event state", err)
	}
	return nil
}

func (s *GormStore) State(ctx context.Context) (*models.State, error) {
	db := s.db.WithContext(ctx)
	state := &models.State{CurrentRound: 1}

	if err := db.Order("created_at, id").Find(&state.Teams).Error; err != nil {
		return nil, TransportError("load teams", err)
	}
	if err := db.Order("round_number, created_at, id").Find(&state.Questions).Error; err != nil {
		return nil, TransportError("load questions", err)
	}
	if err := db.Order("number").Find(&state.Rounds).Error; err != nil {
		return nil, TransportError("load rounds", err)
	}
	if len(state.Rounds) == 0 {
		state.Rounds = append([]models.Round(nil), s.defaultRounds...)
	}

	var es models.EventState
	err := db.First(&es, eventStateID).Error
	switch {
	case err == nil:
		state.CurrentRound = es.CurrentRound
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, TransportError("load current round", err)
	}
	return state, nil
}

func (s *GormStore) ReplaceTeams(ctx context.Context, teams []models.Team) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Team{}).Error; err != nil {
			return err
		}
		if len(teams) == 0 {
			return nil
		}
		return tx.Create(&teams).Error
	})
	if isDuplicate(err) {
		return ErrDuplicateName
	}
	return TransportError("replace teams", err)
}

func (s *GormStore) ReplaceQuestions(ctx context.Context, questions []models.Question) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		return tx.Create(&questions).Error
	})
	return TransportError("replace questions", err)
}

func (s *GormStore) ReplaceRounds(ctx context.Context, rounds []models.Round) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Round{}).Error; err != nil {
			return err
		}
		if len(rounds) == 0 {
			return nil
		}
		return tx.Create(&rounds).Error
	})
	return TransportError("replace rounds", err)
}

func (s *GormStore) SetCurrentRound(ctx context.Context, round int) error {
	err := s.db.WithContext(ctx).Save(&models.EventState{ID: eventStateID, CurrentRound: round}).Error
	return TransportError("set current round", err)
}

func (s *GormStore) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	var team models.Team
	if err := s.db.WithContext(ctx).First(&team, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, TransportError("load team", err)
	}
	return &team, nil
}

func (s *GormStore) FindTeamByName(ctx context.Context, name string) (*models.Team, error) {
	var team models.Team
	if err := s.db.WithContext(ctx).Where("name_key = ?", models.NameKey(name)).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, TransportError("find team", err)
	}
	return &team, nil
}

func (s *GormStore) InsertTeam(ctx context.Context, team *models.Team) error {
	err := s.db.WithContext(ctx).Create(team).Error
	if isDuplicate(err) {
		return ErrDuplicateName
	}
	return TransportError("insert team", err)
}

func (s *GormStore) DeleteTeam(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Team{})
		if res.Error != nil {
			return TransportError("delete team", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTeamNotFound
		}
		err := tx.Model(&models.Question{}).
			Where("assigned_team_id = ?", id).
			Updates(map[string]interface{}{"is_locked": false, "assigned_team_id": nil}).Error
		return TransportError("unlock team question", err)
	})
}

func (s *GormStore) MarkSpun(ctx context.Context, teamID, questionID string, at time.Time) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.Team{}).
		Where("id = ? AND has_spun = ?", teamID, false).
		Updates(map[string]interface{}{
			"has_spun":             true,
			"assigned_question_id": questionID,
			"assigned_at":          at,
		})
	if res.Error != nil {
		return TransportError("mark team spun", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetTeam(ctx, teamID); err != nil {
			return err
		}
		return ErrAlreadySpun
	}
	return nil
}

func (s *GormStore) SetMarks(ctx context.Context, teamID string, marks *int, reason string) error {
	res := s.db.WithContext(ctx).Model(&models.Team{}).
		Where("id = ?", teamID).
		Updates(map[string]interface{}{"marks": marks, "reason": reason})
	if res.Error != nil {
		return TransportError("set marks", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTeamNotFound
	}
	return nil
}

func (s *GormStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	var question models.Question
	if err := s.db.WithContext(ctx).First(&question, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, TransportError("load question", err)
	}
	return &question, nil
}

func (s *GormStore) InsertQuestion(ctx context.Context, question *models.Question) error {
	return TransportError("insert question", s.db.WithContext(ctx).Create(question).Error)
}

func (s *GormStore) DeleteQuestion(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND is_locked = ?", id, false).Delete(&models.Question{})
	if res.Error != nil {
		return TransportError("delete question", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetQuestion(ctx, id); err != nil {
			return err
		}
		return ErrLockedQuestion
	}
	return nil
}

func (s *GormStore) ClaimQuestion(ctx context.Context, questionID, teamID string) error {
	res := s.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ? AND is_locked = ?", questionID, false).
		Updates(map[string]interface{}{"is_locked": true, "assigned_team_id": teamID})
	if res.Error != nil {
		return TransportError("claim question", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetQuestion(ctx, questionID); err != nil {
			return err
		}
		return ErrQuestionAlreadyLocked
	}
	return nil
}

func (s *GormStore) ReleaseQuestion(ctx context.Context, questionID string) error {
	err := s.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", questionID).
		Updates(map[string]interface{}{"is_locked": false, "assigned_team_id": nil}).Error
	return TransportError("release question", err)
}

func (s *GormStore) AdvanceRound(ctx context.Context, from int, keep []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.EventState{}).
			Where("id = ? AND current_round = ?", eventStateID, from).
			Update("current_round", from+1)
		if res.Error != nil {
			return TransportError("advance current round", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrRoundChanged
		}

		selected := keepSet(keep)
		var present int64
		err := tx.Model(&models.Team{}).
			Where("round_number = ? AND id IN ?", from, keep).
			Count(&present).Error
		if err != nil {
			return TransportError("count selected teams", err)
		}
		if int(present) != len(selected) {
			return ErrTeamNotFound
		}
		var unspun int64
		err = tx.Model(&models.Team{}).
			Where("round_number = ? AND (has_spun = ? OR assigned_question_id IS NULL)", from, false).
			Count(&unspun).Error
		if err != nil {
			return TransportError("count unspun teams", err)
		}
		if unspun > 0 {
			return ErrRoundIncomplete
		}

		// Only spun teams are eliminated, so a team joining mid-advance survives.
		drop := tx.Where("round_number = ? AND has_spun = ?", from, true)
		if len(keep) > 0 {
			drop = drop.Where("id NOT IN ?", keep)
		}
		if err := drop.Delete(&models.Team{}).Error; err != nil {
			return TransportError("drop unselected teams", err)
		}

		if len(keep) > 0 {
			err := tx.Model(&models.Team{}).
				Where("round_number = ? AND id IN ?", from, keep).
				Updates(map[string]interface{}{
					"round_number":         from + 1,
					"has_spun":             false,
					"assigned_question_id": nil,
					"assigned_at":          nil,
				}).Error
			if err != nil {
				return TransportError("promote selected teams", err)
			}
		}

		err = tx.Model(&models.Question{}).
			Where("round_number = ?", from).
			Updates(map[string]interface{}{"is_locked": false, "assigned_team_id": nil}).Error
		return TransportError("release finished round questions", err)
	})
}

func (s *GormStore) ResetRound(ctx context.Context, round int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Team{}).
			Where("round_number = ?", round).
			Updates(map[string]interface{}{"has_spun": false, "assigned_question_id": nil, "assigned_at": nil}).Error
		if err != nil {
			return TransportError("reset round teams", err)
		}
		err = tx.Model(&models.Question{}).
			Where("round_number = ?", round).
			Updates(map[string]interface{}{"is_locked": false, "assigned_team_id": nil}).Error
		if err != nil {
			return TransportError("reset round questions", err)
		}
		return TransportError("clear round spins", tx.Where("round_number = ?", round).Delete(&models.SpinRecord{}).Error)
	})
}

func (s *GormStore) ResetAll(ctx context.Context) error {
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()
	all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})

	err := all.Model(&models.Team{}).Updates(map[string]interface{}{
		"round_number":         1,
		"has_spun":             false,
		"assigned_question_id": nil,
		"assigned_at":          nil,
		"marks":                nil,
		"reason":               "",
	}).Error
	if err != nil {
		tx.Rollback()
		return TransportError("reset teams", err)
	}

	if err := all.Model(&models.Question{}).Updates(map[string]interface{}{"is_locked": false, "assigned_team_id": nil}).Error; err != nil {
		tx.Rollback()
		return TransportError("reset questions", err)
	}
	if err := all.Model(&models.Countdown{}).Update("active", false).Error; err != nil {
		tx.Rollback()
		return TransportError("reset countdowns", err)
	}
	if err := all.Delete(&models.SpinRecord{}).Error; err != nil {
		tx.Rollback()
		return TransportError("clear spins", err)
	}
	if err := tx.Save(&models.EventState{ID: eventStateID, CurrentRound: 1}).Error; err != nil {
		tx.Rollback()
		return TransportError("reset current round", err)
	}

	return TransportError("commit reset", tx.Commit().Error)
}

func (s *GormStore) UpdateRoundCapacity(ctx context.Context, round, maxTeams int) error {
	res := s.db.WithContext(ctx).Model(&models.Round{}).Where("number = ?", round).Update("max_teams", maxTeams)
	if res.Error != nil {
		return TransportError("update round capacity", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoundNotFound
	}
	return nil
}

func (s *GormStore) GetCountdown(ctx context.Context, round int) (*models.Countdown, error) {
	var countdown models.Countdown
	err := s.db.WithContext(ctx).First(&countdown, "round_number = ?", round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Countdown{Round: round}, nil
	}
	if err != nil {
		return nil, TransportError("load countdown", err)
	}
	return &countdown, nil
}

func (s *GormStore) SaveCountdown(ctx context.Context, countdown *models.Countdown) error {
	return TransportError("save countdown", s.db.WithContext(ctx).Save(countdown).Error)
}

func (s *GormStore) AppendSpin(ctx context.Context, record *models.SpinRecord) error {
	return TransportError("append spin", s.db.WithContext(ctx).Create(record).Error)
}

func (s *GormStore) ListSpins(ctx context.Context, round int) ([]models.SpinRecord, error) {
	var records []models.SpinRecord
	err := s.db.WithContext(ctx).Where("round_number = ?", round).Order("spun_at, id").Find(&records).Error
	if err != nil {
		return nil, TransportError("list spins", err)
	}
	return records, nil
}

func (s *GormStore) FindAdmin(ctx context.Context, name string) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := s.db.WithContext(ctx).Where("name = ?", models.NameKey(name)).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, TransportError("find admin", err)
	}
	return &admin, nil
}

func (s *GormStore) UpsertAdmin(ctx context.Context, admin *models.AdminUser) error {
	admin.Name = models.NameKey(admin.Name)
	existing, err := s.FindAdmin(ctx, admin.Name)
	switch {
	case err == nil:
		admin.ID = existing.ID
		admin.CreatedAt = existing.CreatedAt
		return TransportError("update admin", s.db.WithContext(ctx).Save(admin).Error)
	case errors.Is(err, ErrAdminNotFound):
		return TransportError("create admin", s.db.WithContext(ctx).Create(admin).Error)
	default:
		return err
	}
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
