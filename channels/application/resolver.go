package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduzayn/educhat/channels/domain"
	"github.com/eduzayn/educhat/infrastructure/gateway"
	"github.com/sirupsen/logrus"
)

// Credential sources, reported alongside every resolution.
const (
	SourceChannel = "channel"
	SourceDefault = "default_channel"
	SourceEnv     = "environment"
)

// StatusChecker probes a gateway instance.
type StatusChecker interface {
	Status(ctx context.Context, creds gateway.Credentials) (gateway.InstanceStatus, error)
}

// Resolution is the outcome of picking credentials for an outbound send.
type Resolution struct {
	Credentials gateway.Credentials
	ChannelID   *uint
	Source      string
}

type Resolver struct {
	repo      domain.ChannelRepository
	cache     domain.StatusCache
	checker   StatusChecker
	fallback  gateway.Credentials
	statusTTL time.Duration
}

func NewResolver(repo domain.ChannelRepository, cache domain.StatusCache, checker StatusChecker, fallback gateway.Credentials, statusTTL time.Duration) *Resolver {
	if statusTTL <= 0 {
		statusTTL = 30 * time.Second
	}
	return &Resolver{
		repo:      repo,
		cache:     cache,
		checker:   checker,
		fallback:  fallback,
		statusTTL: statusTTL,
	}
}

// ForSend picks credentials for an outbound message. An explicit channel must
// be usable as-is; without one the single default channel is preferred and
// the environment credentials are the last resort.
func (r *Resolver) ForSend(ctx context.Context, channelID *uint) (Resolution, error) {
	if channelID != nil {
		ch, err := r.repo.GetByID(ctx, *channelID)
		if err != nil {
			if errors.Is(err, domain.ErrChannelNotFound) {
				return Resolution{}, domain.ChannelMisconfigured(*channelID, "not found")
			}
			return Resolution{}, fmt.Errorf("load channel %d: %w", *channelID, err)
		}
		if err := validateForSend(ch); err != nil {
			return Resolution{}, err
		}
		id := ch.ID
		return Resolution{Credentials: credentialsOf(ch), ChannelID: &id, Source: SourceChannel}, nil
	}

	defaults, err := r.repo.ListActiveDefaults(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("list default channels: %w", err)
	}
	if len(defaults) > 1 {
		logrus.Warnf("[RESOLVER] %d active default channels configured, using channel %d", len(defaults), defaults[0].ID)
	}
	for _, ch := range defaults {
		if ch.HasCredentials() {
			id := ch.ID
			return Resolution{Credentials: credentialsOf(ch), ChannelID: &id, Source: SourceDefault}, nil
		}
		logrus.Warnf("[RESOLVER] Default channel %d has incomplete credentials, skipping", ch.ID)
	}

	if r.fallback.Complete() {
		logrus.Warn("[RESOLVER] No usable default channel, falling back to environment gateway credentials")
		return Resolution{Credentials: r.fallback, Source: SourceEnv}, nil
	}
	return Resolution{}, domain.CredentialsUnavailable("no default channel and no environment credentials")
}

// ForWebhook attributes an inbound webhook to a channel. A miss is not an
// error: the message is still processed and attribution is repaired later.
func (r *Resolver) ForWebhook(ctx context.Context, channelID *uint, instanceID string) *domain.Channel {
	if channelID != nil {
		ch, err := r.repo.GetByID(ctx, *channelID)
		if err == nil && ch.Active {
			return ch
		}
		if err != nil && !errors.Is(err, domain.ErrChannelNotFound) {
			logrus.WithError(err).Warnf("[RESOLVER] Failed to load channel %d for webhook", *channelID)
		}
	}
	if instanceID == "" {
		return nil
	}
	ch, err := r.repo.FindActiveByInstanceID(ctx, instanceID)
	if err != nil {
		if !errors.Is(err, domain.ErrChannelNotFound) {
			logrus.WithError(err).Warnf("[RESOLVER] Failed to look up instance %s", instanceID)
		}
		return nil
	}
	return ch
}

// Status returns the gateway connection state, served from cache inside the TTL.
func (r *Resolver) Status(ctx context.Context, channelID uint) (domain.CachedStatus, error) {
	if cached, err := r.cache.Get(ctx, channelID); err != nil {
		logrus.WithError(err).Warn("[RESOLVER] Status cache read failed")
	} else if cached != nil {
		cached.Cached = true
		return *cached, nil
	}

	ch, err := r.repo.GetByID(ctx, channelID)
	if err != nil {
		return domain.CachedStatus{}, err
	}
	if !ch.HasCredentials() {
		return domain.CachedStatus{}, domain.ChannelMisconfigured(channelID, "missing credentials")
	}

	st := domain.CachedStatus{ChannelID: channelID, CheckedAt: time.Now().UTC()}
	probe, err := r.checker.Status(ctx, credentialsOf(ch))
	if err != nil {
		st.Error = err.Error()
	} else {
		st.Connected = probe.Connected
		st.SmartphoneConnected = probe.SmartphoneConnected
		st.Error = probe.Error
	}

	if err := r.cache.Set(ctx, st, r.statusTTL); err != nil {
		logrus.WithError(err).Warn("[RESOLVER] Status cache write failed")
	}
	return st, nil
}

// MarkConnection applies a Connected/Disconnected callback and drops the cached probe.
func (r *Resolver) MarkConnection(ctx context.Context, instanceID string, connected bool) (*domain.Channel, error) {
	status := domain.StatusDisconnected
	if connected {
		status = domain.StatusConnected
	}
	ch, err := r.repo.UpdateStatus(ctx, instanceID, status, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := r.cache.Invalidate(ctx, ch.ID); err != nil {
		logrus.WithError(err).Warn("[RESOLVER] Status cache invalidation failed")
	}
	logrus.Infof("[RESOLVER] Channel %d (%s) is now %s", ch.ID, instanceID, status)
	return ch, nil
}

func validateForSend(ch *domain.Channel) error {
	switch {
	case !ch.Active:
		return domain.ChannelMisconfigured(ch.ID, "channel is inactive")
	case ch.Type != domain.ChannelTypeGateway:
		return domain.ChannelMisconfigured(ch.ID, fmt.Sprintf("channel type %q cannot send through the gateway", ch.Type))
	case !ch.HasCredentials():
		return domain.ChannelMisconfigured(ch.ID, "instance id, token and client token are all required")
	}
	return nil
}

func credentialsOf(ch *domain.Channel) gateway.Credentials {
	return gateway.Credentials{InstanceID: ch.InstanceID, Token: ch.Token, ClientToken: ch.ClientToken}
}
