package httptransport

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"spout/internal/identity/models"
	"spout/internal/platform/ethcrypto"
	"spout/internal/platform/middleware"
	domainerrors "spout/pkg/domain-errors"
)

// IdentityService is the slice of the identity service the transport needs.
type IdentityService interface {
	CreateIdentity(ctx context.Context, address, owner common.Address) (*models.Identity, error)
	GetIdentity(ctx context.Context, address common.Address) (*models.Identity, error)
	AddKey(ctx context.Context, caller, address, target common.Address, purpose models.Purpose, keyType models.KeyType) error
	RemoveKey(ctx context.Context, caller, address, target common.Address, purpose models.Purpose) error
	AddClaim(ctx context.Context, caller, address common.Address, claim models.Claim) (models.ClaimID, error)
	RemoveClaim(ctx context.Context, caller, address common.Address, issuer common.Address, topic models.ClaimTopic) error
	GetClaim(ctx context.Context, address common.Address, claimID models.ClaimID) (models.Claim, error)
	GetClaimIDsByTopic(ctx context.Context, address common.Address, topic models.ClaimTopic) ([]models.ClaimID, error)
	IsClaimValid(ctx context.Context, issuer, subject common.Address, topic models.ClaimTopic, signature []byte, dataHash [32]byte) (bool, error)
}

type IdentityHandler struct {
	identities IdentityService
}

func NewIdentityHandler(identities IdentityService) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

func (h *IdentityHandler) Register(r chi.Router) {
	r.Route("/identities", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/{address}", h.handleGet)
		r.Post("/{address}/keys", h.handleAddKey)
		r.Delete("/{address}/keys/{target}/{purpose}", h.handleRemoveKey)
		r.Post("/{address}/claims", h.handleAddClaim)
		r.Get("/{address}/claims", h.handleClaimIDsByTopic)
		r.Get("/{address}/claims/{claimID}", h.handleGetClaim)
		r.Delete("/{address}/claims/{issuer}/{topic}", h.handleRemoveClaim)
	})
	r.Post("/claims/validate", h.handleValidateClaim)
}

type keyResponse struct {
	ID       string   `json:"id"`
	Type     uint64   `json:"type"`
	Purposes []uint64 `json:"purposes"`
}

type claimResponse struct {
	ID        string `json:"id"`
	Topic     uint64 `json:"topic"`
	Scheme    uint64 `json:"scheme"`
	Issuer    string `json:"issuer"`
	Signature string `json:"signature"`
	DataHash  string `json:"data_hash"`
	URI       string `json:"uri,omitempty"`
}

type identityResponse struct {
	Address string          `json:"address"`
	Keys    []keyResponse   `json:"keys"`
	Claims  []claimResponse `json:"claims"`
}

func renderIdentity(identity *models.Identity) identityResponse {
	out := identityResponse{
		Address: identity.Address().Hex(),
		Keys:    []keyResponse{},
		Claims:  []claimResponse{},
	}
	for _, key := range identity.Keys() {
		purposes := []uint64{}
		for _, p := range key.Purposes.List() {
			purposes = append(purposes, uint64(p))
		}
		out.Keys = append(out.Keys, keyResponse{ID: key.ID.Hex(), Type: uint64(key.Type), Purposes: purposes})
	}
	for _, claim := range identity.Claims() {
		out.Claims = append(out.Claims, renderClaim(claim))
	}
	return out
}

func renderClaim(claim models.Claim) claimResponse {
	return claimResponse{
		ID:        claim.ID().Hex(),
		Topic:     uint64(claim.Topic),
		Scheme:    uint64(claim.Scheme),
		Issuer:    claim.Issuer.Hex(),
		Signature: "0x" + common.Bytes2Hex(claim.Signature),
		DataHash:  "0x" + common.Bytes2Hex(claim.DataHash[:]),
		URI:       claim.URI,
	}
}

func (h *IdentityHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
		Owner   string `json:"owner"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	address, err := parseAddress(req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	owner := middleware.Caller(r.Context())
	if req.Owner != "" {
		if owner, err = parseAddress(req.Owner); err != nil {
			writeError(w, err)
			return
		}
	}

	identity, err := h.identities.CreateIdentity(r.Context(), address, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderIdentity(identity))
}

func (h *IdentityHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	identity, err := h.identities.GetIdentity(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderIdentity(identity))
}

func (h *IdentityHandler) handleAddKey(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Target  string `json:"target"`
		Purpose uint64 `json:"purpose"`
		KeyType uint64 `json:"key_type"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	target, err := parseAddress(req.Target)
	if err != nil {
		writeError(w, err)
		return
	}
	keyType := models.KeyType(req.KeyType)
	if keyType == 0 {
		keyType = models.KeyTypeECDSA
	}

	err = h.identities.AddKey(r.Context(), middleware.Caller(r.Context()), address, target, models.Purpose(req.Purpose), keyType)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IdentityHandler) handleRemoveKey(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	target, err := parseAddress(chi.URLParam(r, "target"))
	if err != nil {
		writeError(w, err)
		return
	}
	purpose, err := strconv.ParseUint(chi.URLParam(r, "purpose"), 10, 64)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid purpose"))
		return
	}

	err = h.identities.RemoveKey(r.Context(), middleware.Caller(r.Context()), address, target, models.Purpose(purpose))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IdentityHandler) handleAddClaim(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Topic     uint64 `json:"topic"`
		Scheme    uint64 `json:"scheme"`
		Issuer    string `json:"issuer"`
		Signature string `json:"signature"`
		DataHash  string `json:"data_hash"`
		URI       string `json:"uri"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	issuer, err := parseAddress(req.Issuer)
	if err != nil {
		writeError(w, err)
		return
	}
	signature, err := parseHex(req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	dataHash, err := parseHash32(req.DataHash)
	if err != nil {
		writeError(w, err)
		return
	}
	scheme := ethcrypto.SignatureScheme(req.Scheme)
	if scheme == 0 {
		scheme = ethcrypto.SchemeECDSA
	}

	claimID, err := h.identities.AddClaim(r.Context(), middleware.Caller(r.Context()), address, models.Claim{
		Topic:     models.ClaimTopic(req.Topic),
		Scheme:    scheme,
		Issuer:    issuer,
		Signature: signature,
		DataHash:  dataHash,
		URI:       req.URI,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"claim_id": claimID.Hex()})
}

func (h *IdentityHandler) handleClaimIDsByTopic(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	topic, err := strconv.ParseUint(r.URL.Query().Get("topic"), 10, 64)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "topic query parameter required"))
		return
	}

	ids, err := h.identities.GetClaimIDsByTopic(r.Context(), address, models.ClaimTopic(topic))
	if err != nil {
		writeError(w, err)
		return
	}
	out := []string{}
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	writeJSON(w, http.StatusOK, map[string][]string{"claim_ids": out})
}

func (h *IdentityHandler) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	claimID, err := parseHash32(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, err)
		return
	}

	claim, err := h.identities.GetClaim(r.Context(), address, models.ClaimID(claimID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderClaim(claim))
}

func (h *IdentityHandler) handleRemoveClaim(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	issuer, err := parseAddress(chi.URLParam(r, "issuer"))
	if err != nil {
		writeError(w, err)
		return
	}
	topic, err := strconv.ParseUint(chi.URLParam(r, "topic"), 10, 64)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid topic"))
		return
	}

	err = h.identities.RemoveClaim(r.Context(), middleware.Caller(r.Context()), address, issuer, models.ClaimTopic(topic))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IdentityHandler) handleValidateClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Issuer    string `json:"issuer"`
		Subject   string `json:"subject"`
		Topic     uint64 `json:"topic"`
		Signature string `json:"signature"`
		DataHash  string `json:"data_hash"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	issuer, err := parseAddress(req.Issuer)
	if err != nil {
		writeError(w, err)
		return
	}
	subject, err := parseAddress(req.Subject)
	if err != nil {
		writeError(w, err)
		return
	}
	signature, err := parseHex(req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	dataHash, err := parseHash32(req.DataHash)
	if err != nil {
		writeError(w, err)
		return
	}

	valid, err := h.identities.IsClaimValid(r.Context(), issuer, subject, models.ClaimTopic(req.Topic), signature, dataHash)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}
