package service

import (
	"context"
	"errors"
	"time"

	"haven/internal/models"
	"haven/internal/observability"
	"haven/internal/repository"
	"haven/internal/validation"

	"gorm.io/gorm"
)

// ChannelRegistry owns channel lifecycle: find-or-create on join, deletion,
// and the inactivity sweep. A stale channel found during FindOrCreate is
// replaced in place rather than waiting for the sweeper.
type ChannelRegistry struct {
	db       *gorm.DB
	channels repository.ChannelRepository
	ttl      time.Duration

	// join is injected to avoid a registry/engine cycle. It performs the
	// ban and visibility checks for an existing channel.
	join func(ctx context.Context, userID, channelID uint) error
}

// NewChannelRegistry returns a registry with the given channel TTL.
func NewChannelRegistry(db *gorm.DB, ttl time.Duration, join func(ctx context.Context, userID, channelID uint) error) *ChannelRegistry {
	return &ChannelRegistry{
		db:       db,
		channels: repository.NewChannelRepository(db),
		ttl:      ttl,
		join:     join,
	}
}

// FindOrCreate resolves a channel by name, creating it when absent. The
// returned bool reports whether a new channel was created. Creating makes
// the caller the owner with an admin membership; joining an existing channel
// goes through the moderation checks. replacedID is nonzero when a stale
// channel was retired to free the name; the caller is responsible for
// publishing its deletion so connected subscribers get evicted.
func (r *ChannelRegistry) FindOrCreate(ctx context.Context, userID uint, rawName string, private bool) (channel *models.Channel, created bool, replacedID uint, err error) {
	name := validation.NormalizeChannelName(rawName)
	if err := validation.ValidateChannelName(name); err != nil {
		return nil, false, 0, models.NewValidationError(err.Error())
	}

	existing, err := r.channels.GetByName(ctx, name)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, 0, storeErr(err)
	}

	if existing != nil {
		stale, staleErr := r.isStale(ctx, existing.ID, time.Now())
		if staleErr != nil {
			return nil, false, 0, storeErr(staleErr)
		}
		if !stale {
			if joinErr := r.join(ctx, userID, existing.ID); joinErr != nil {
				return existing, false, 0, joinErr
			}
			return existing, false, 0, nil
		}

		// The name points at a dead channel. Retire it and fall through
		// to creation so the joiner gets a fresh channel they own.
		if delErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return cascadeDeleteChannel(tx, existing.ID)
		}); delErr != nil {
			return nil, false, 0, storeErr(delErr)
		}
		observability.ChannelsSweptTotal.Inc()
		replacedID = existing.ID
	}

	channel, err = r.create(ctx, userID, name, private)
	if err != nil {
		return nil, false, replacedID, err
	}
	return channel, true, replacedID, nil
}

func (r *ChannelRegistry) create(ctx context.Context, ownerID uint, name string, private bool) (*models.Channel, error) {
	visibility := models.ChannelVisibilityPublic
	if private {
		visibility = models.ChannelVisibilityPrivate
	}

	channel := &models.Channel{
		Name:       name,
		Visibility: visibility,
		OwnerID:    ownerID,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewChannelRepository(tx).Create(ctx, channel); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost a create race; the caller can retry and join.
				return models.NewConflictError("Channel was just created by someone else; try again")
			}
			return err
		}
		return repository.NewMembershipRepository(tx).Create(ctx, &models.Membership{
			ChannelID: channel.ID,
			UserID:    ownerID,
			Role:      models.MembershipRoleAdmin,
		})
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return channel, nil
}

// Get returns a channel by ID.
func (r *ChannelRegistry) Get(ctx context.Context, channelID uint) (*models.Channel, error) {
	channel, err := r.channels.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Channel", channelID)
		}
		return nil, storeErr(err)
	}
	return channel, nil
}

// List returns all channels ordered by name.
func (r *ChannelRegistry) List(ctx context.Context) ([]*models.Channel, error) {
	channels, err := r.channels.List(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return channels, nil
}

// DeleteChannel removes a channel and all dependent rows. Only the owner or
// a site admin may delete.
func (r *ChannelRegistry) DeleteChannel(ctx context.Context, actorID, channelID uint, siteAdmin bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var channel models.Channel
		if err := tx.First(&channel, channelID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Channel", channelID)
			}
			return err
		}
		if channel.OwnerID != actorID && !siteAdmin {
			return models.NewForbiddenError("Only the channel owner can delete the channel")
		}
		return cascadeDeleteChannel(tx, channelID)
	})
	return storeErr(err)
}

// SweepInactive deletes every channel whose last activity predates the TTL
// cutoff and returns the swept channel IDs. Failures are isolated per
// channel so one bad row cannot stall the sweep.
func (r *ChannelRegistry) SweepInactive(ctx context.Context, now time.Time) ([]uint, error) {
	cutoff := now.Add(-r.ttl)
	stale, err := r.channels.ListStale(ctx, cutoff)
	if err != nil {
		observability.SweepFailuresTotal.Inc()
		return nil, storeErr(err)
	}

	swept := make([]uint, 0, len(stale))
	for _, channel := range stale {
		delErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Re-check inside the transaction; a message may have landed
			// between the listing and now.
			fresh, activityErr := repository.NewChannelRepository(tx).LastActivity(ctx, channel.ID)
			if activityErr != nil {
				return activityErr
			}
			if !fresh.Before(cutoff) {
				return nil
			}
			if err := cascadeDeleteChannel(tx, channel.ID); err != nil {
				return err
			}
			swept = append(swept, channel.ID)
			return nil
		})
		if delErr != nil {
			if errors.Is(delErr, gorm.ErrRecordNotFound) {
				continue
			}
			observability.SweepFailuresTotal.Inc()
			continue
		}
	}

	observability.ChannelsSweptTotal.Add(float64(len(swept)))
	return swept, nil
}

// TTL returns the configured inactivity window.
func (r *ChannelRegistry) TTL() time.Duration {
	return r.ttl
}

func (r *ChannelRegistry) isStale(ctx context.Context, channelID uint, now time.Time) (bool, error) {
	last, err := r.channels.LastActivity(ctx, channelID)
	if err != nil {
		return false, err
	}
	return now.Sub(last) >= r.ttl, nil
}
