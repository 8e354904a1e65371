// Package service implements identity, key, and claim management. The
// aggregate enforces key-store invariants; this layer adds claim signature
// validation, issuer delegation checks, events, and metrics.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"spout/internal/events"
	"spout/internal/identity/metrics"
	"spout/internal/identity/models"
	"spout/internal/platform/ethcrypto"
	domainerrors "spout/pkg/domain-errors"
	"spout/pkg/platform/sentinel"
)

// IdentityStore is the persistence port for identity aggregates.
type IdentityStore interface {
	Create(ctx context.Context, identity *models.Identity) error
	Get(ctx context.Context, address common.Address) (*models.Identity, error)
	Mutate(ctx context.Context, address common.Address, fn func(*models.Identity) error) error
}

// Service orchestrates identity lifecycle and claim management.
type Service struct {
	identities IdentityStore
	verifier   ethcrypto.SignatureVerifier
	logger     *slog.Logger
	publisher  events.Publisher
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithVerifier swaps the signature verifier. The default covers scheme 1
// (ECDSA).
func WithVerifier(v ethcrypto.SignatureVerifier) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

// New constructs a Service.
func New(identities IdentityStore, opts ...Option) *Service {
	s := &Service{
		identities: identities,
		verifier:   ethcrypto.ECDSAVerifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateIdentity onboards a principal with a bootstrapped management key.
func (s *Service) CreateIdentity(ctx context.Context, address, owner common.Address) (*models.Identity, error) {
	identity := models.NewIdentity(address, owner)
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, domainerrors.New(domainerrors.CodeConflict, "identity already exists")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create identity")
	}
	s.metrics.IncrementIdentitiesCreated()
	s.emit(ctx, events.Event{
		Type:     events.TypeIdentityCreated,
		Identity: address.Hex(),
	})
	s.log(ctx, "identity created", "identity", address.Hex(), "owner", owner.Hex())
	return identity, nil
}

// GetIdentity returns the aggregate for reads.
func (s *Service) GetIdentity(ctx context.Context, address common.Address) (*models.Identity, error) {
	identity, err := s.identities.Get(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "identity not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load identity")
	}
	return identity, nil
}

// HasPurpose evaluates the authorization predicate on an identity.
func (s *Service) HasPurpose(ctx context.Context, address, principal common.Address, purpose models.Purpose) (bool, error) {
	identity, err := s.GetIdentity(ctx, address)
	if err != nil {
		return false, err
	}
	return identity.HasPurpose(principal, purpose), nil
}

// AddKey grants a purpose to the target principal on the identity.
func (s *Service) AddKey(ctx context.Context, caller, address, target common.Address, purpose models.Purpose, keyType models.KeyType) error {
	err := s.mutate(ctx, address, func(identity *models.Identity) error {
		return identity.AddKey(caller, target, purpose, keyType)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, events.Event{
		Type:     events.TypeKeyAdded,
		Identity: address.Hex(),
	})
	s.log(ctx, "key added", "identity", address.Hex(), "target", target.Hex(), "purpose", purpose.String())
	return nil
}

// RemoveKey revokes a purpose from the target principal on the identity.
func (s *Service) RemoveKey(ctx context.Context, caller, address, target common.Address, purpose models.Purpose) error {
	err := s.mutate(ctx, address, func(identity *models.Identity) error {
		return identity.RemoveKey(caller, target, purpose)
	})
	if err != nil {
		return err
	}
	s.emit(ctx, events.Event{
		Type:     events.TypeKeyRemoved,
		Identity: address.Hex(),
	})
	s.log(ctx, "key removed", "identity", address.Hex(), "target", target.Hex(), "purpose", purpose.String())
	return nil
}

// AddClaim validates and stores an issuer-signed claim on the identity.
// Validation delegates authenticity to the named issuer: the issuer, not the
// subject identity, is authoritative over which keys may sign on its behalf.
// The operation is atomic; a failed validation leaves no state behind.
func (s *Service) AddClaim(ctx context.Context, caller, address common.Address, claim models.Claim) (models.ClaimID, error) {
	identity, err := s.GetIdentity(ctx, address)
	if err != nil {
		return models.ClaimID{}, err
	}
	if !identity.CanManageClaims(caller) {
		s.metrics.IncrementClaimsRejected("unauthorized")
		return models.ClaimID{}, domainerrors.New(domainerrors.CodeUnauthorized, "caller lacks claim purpose")
	}
	if claim.Scheme != ethcrypto.SchemeECDSA {
		s.metrics.IncrementClaimsRejected("unsupported_scheme")
		return models.ClaimID{}, domainerrors.New(domainerrors.CodeUnsupportedScheme, "only ECDSA claim signatures are supported")
	}

	valid, err := s.IsClaimValid(ctx, claim.Issuer, address, claim.Topic, claim.Signature, claim.DataHash)
	if err != nil {
		return models.ClaimID{}, err
	}
	if !valid {
		s.metrics.IncrementClaimsRejected("invalid_claim")
		return models.ClaimID{}, domainerrors.New(domainerrors.CodeInvalidClaim, "issuer did not validate claim signature")
	}

	var claimID models.ClaimID
	err = s.mutate(ctx, address, func(identity *models.Identity) error {
		// Re-check under the mutation lock; authorization may have been
		// revoked between the read and the write.
		if !identity.CanManageClaims(caller) {
			return domainerrors.New(domainerrors.CodeUnauthorized, "caller lacks claim purpose")
		}
		claimID, _ = identity.StoreClaim(claim)
		return nil
	})
	if err != nil {
		return models.ClaimID{}, err
	}

	s.metrics.IncrementClaimsAdded()
	s.emit(ctx, events.Event{
		Type:     events.TypeClaimAdded,
		Identity: address.Hex(),
		Issuer:   claim.Issuer.Hex(),
		Topic:    uint64(claim.Topic),
	})
	s.log(ctx, "claim added", "identity", address.Hex(), "issuer", claim.Issuer.Hex(), "topic", uint64(claim.Topic))
	return claimID, nil
}

// RemoveClaim deletes the claim at the (issuer, topic) slot. Removing an
// absent claim succeeds without effect so cleanup flows can retry safely.
func (s *Service) RemoveClaim(ctx context.Context, caller, address common.Address, issuer common.Address, topic models.ClaimTopic) error {
	claimID := models.ClaimID(ethcrypto.ClaimID(issuer, uint64(topic)))
	removed := false
	err := s.mutate(ctx, address, func(identity *models.Identity) error {
		if !identity.CanManageClaims(caller) {
			return domainerrors.New(domainerrors.CodeUnauthorized, "caller lacks claim purpose")
		}
		removed = identity.RemoveClaim(claimID)
		return nil
	})
	if err != nil {
		return err
	}
	if removed {
		s.metrics.IncrementClaimsRemoved()
		s.emit(ctx, events.Event{
			Type:     events.TypeClaimRemoved,
			Identity: address.Hex(),
			Issuer:   issuer.Hex(),
			Topic:    uint64(topic),
		})
	}
	return nil
}

// GetClaim reads the stored claim at the given slot.
func (s *Service) GetClaim(ctx context.Context, address common.Address, claimID models.ClaimID) (models.Claim, error) {
	identity, err := s.GetIdentity(ctx, address)
	if err != nil {
		return models.Claim{}, err
	}
	claim, ok := identity.Claim(claimID)
	if !ok {
		return models.Claim{}, domainerrors.New(domainerrors.CodeNotFound, "claim not found")
	}
	return claim, nil
}

// GetClaimIDsByTopic enumerates claim slots for a topic in insertion order.
func (s *Service) GetClaimIDsByTopic(ctx context.Context, address common.Address, topic models.ClaimTopic) ([]models.ClaimID, error) {
	identity, err := s.GetIdentity(ctx, address)
	if err != nil {
		return nil, err
	}
	return identity.ClaimIDsByTopic(topic), nil
}

// IsClaimValid implements issuer-side validation: recover the signer of
// keccak256(subject, topic, dataHash) and accept iff the signer's key holds
// claim purpose on the issuer's own key store. The issuer may delegate
// signing to keys distinct from its own address.
func (s *Service) IsClaimValid(ctx context.Context, issuer, subject common.Address, topic models.ClaimTopic, signature []byte, dataHash [32]byte) (bool, error) {
	issuerIdentity, err := s.identities.Get(ctx, issuer)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// An unknown issuer cannot vouch for anything.
			s.metrics.IncrementClaimValidations(false)
			return false, nil
		}
		return false, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load issuer")
	}

	messageHash := ethcrypto.ClaimMessageHash(subject, uint64(topic), dataHash)
	signer, err := s.verifier.RecoverSigner(messageHash, signature)
	if err != nil {
		// A malformed signature is simply invalid, not a server fault.
		s.metrics.IncrementClaimValidations(false)
		return false, nil
	}

	valid := issuerIdentity.HasKeyPurpose(models.KeyID(ethcrypto.KeyID(signer)), models.PurposeClaim)
	s.metrics.IncrementClaimValidations(valid)
	return valid, nil
}

func (s *Service) mutate(ctx context.Context, address common.Address, fn func(*models.Identity) error) error {
	err := s.identities.Mutate(ctx, address, fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return domainerrors.New(domainerrors.CodeNotFound, "identity not found")
	}
	var dErr *domainerrors.Error
	if errors.As(err, &dErr) {
		return err
	}
	return domainerrors.Wrap(err, domainerrors.CodeInternal, "identity mutation failed")
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log(ctx, "event publish failed", "event", string(event.Type), "error", err)
	}
}

func (s *Service) log(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}
