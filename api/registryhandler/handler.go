package registryhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/ruteri/utility-registry/api"
	"github.com/ruteri/utility-registry/interfaces"
	"github.com/ruteri/utility-registry/storage"
)

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// Checkpointer persists registry snapshots.
type Checkpointer interface {
	Save(ctx context.Context, src storage.SnapshotSource) (interfaces.ContentID, uint64, error)
}

// Handler serves the registry JSON API. Reads are public; every mutating
// route goes through the Authenticator and acts as the recovered caller.
type Handler struct {
	registry     interfaces.TokenRegistry
	checkpointer Checkpointer
	auth         *Authenticator
	log          *slog.Logger
}

// NewHandler creates a registry API handler. A nil checkpointer disables the
// checkpoint endpoint.
func NewHandler(registry interfaces.TokenRegistry, checkpointer Checkpointer, auth *Authenticator, log *slog.Logger) *Handler {
	return &Handler{
		registry:     registry,
		checkpointer: checkpointer,
		auth:         auth,
		log:          log,
	}
}

// RegisterRoutes configures the router with the registry endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tokens/{id}", h.HandleToken)
		r.Get("/tokens/{id}/utility", h.HandleUtility)
		r.Get("/holders/{address}", h.HandleHolder)
		r.Get("/governance", h.HandleGovernance)
		r.Get("/events", h.HandleEvents)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware)

			r.Post("/tokens", h.HandleMint)
			r.Post("/tokens/{id}/transfer", h.HandleTransfer)
			r.Post("/tokens/{id}/approve", h.HandleApprove)
			r.Post("/operators", h.HandleSetOperator)
			r.Put("/tokens/{id}/utility", h.HandleSetUtilityBinding)
			r.Put("/governance/max-supply", h.HandleSetMaxSupply)
			r.Put("/governance/metadata-base", h.HandleSetMetadataBase)
			r.Put("/governance/administrator", h.HandleSetAdministrator)
			r.Post("/governance/checkpoint", h.HandleCheckpoint)
		})
	})
}

// statusFor maps registry failures to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrNotAuthorized), errors.Is(err, interfaces.ErrNotHolder):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrAlreadyMinted),
		errors.Is(err, interfaces.ErrSupplyExceeded),
		errors.Is(err, interfaces.ErrCapReduced):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrInvalidAccount),
		errors.Is(err, interfaces.ErrInvalidApproval),
		errors.Is(err, interfaces.ErrIndexOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error(msg, "err", err)
	} else {
		h.log.Debug(msg, "err", err)
	}
	http.Error(w, fmt.Errorf("%s: %w", msg, err).Error(), status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, response any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func tokenIDParam(r *http.Request) (interfaces.TokenID, *RequestError) {
	id, err := interfaces.ParseTokenID(chi.URLParam(r, "id"))
	if err != nil {
		return interfaces.TokenID{}, &RequestError{http.StatusBadRequest, err}
	}
	return id, nil
}

// decodeSigned decodes a request body that already passed the Authenticator
// and returns the caller it recovered.
func decodeSigned(r *http.Request, dst any) (common.Address, *RequestError) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		return common.Address{}, &RequestError{http.StatusUnauthorized, errors.New("request is not authenticated")}
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.Address{}, &RequestError{http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)}
	}
	return caller, nil
}

// HandleToken returns holder, token URI, approval and binding of a token.
//
// URL format: GET /api/v1/tokens/{id}
//
// Status codes:
//   - 200 OK: token found
//   - 400 Bad Request: malformed token id
//   - 404 Not Found: token never minted
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	id, reqErr := tokenIDParam(r)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	token, err := h.registry.Token(id)
	if err != nil {
		h.writeError(w, "could not fetch token", err)
		return
	}

	h.writeJSON(w, api.TokenResponse{
		TokenID:    id,
		Holder:     token.Holder,
		TokenURI:   token.TokenURI,
		Approved:   token.Approved,
		Binding:    token.Binding,
		HasUtility: token.HasUtility,
	})
}

// HandleUtility returns the utility view of a token. Unknown tokens report
// no utility.
//
// URL format: GET /api/v1/tokens/{id}/utility
func (h *Handler) HandleUtility(w http.ResponseWriter, r *http.Request) {
	id, reqErr := tokenIDParam(r)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	response := api.UtilityResponse{TokenID: id}
	token, err := h.registry.Token(id)
	switch {
	case errors.Is(err, interfaces.ErrUnknownToken):
		// unknown tokens have no utility
	case err != nil:
		h.writeError(w, "could not fetch token", err)
		return
	default:
		response.HasUtility = token.HasUtility
		if token.Binding != nil {
			response.BoundAddress = token.Binding.Address
			response.Metadata = token.Binding.Metadata
		}
	}
	h.writeJSON(w, response)
}

// HandleHolder returns the balance and enumerated tokens of an account.
//
// URL format: GET /api/v1/holders/{address}
func (h *Handler) HandleHolder(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		http.Error(w, fmt.Sprintf("invalid address %q", raw), http.StatusBadRequest)
		return
	}
	holder := common.HexToAddress(raw)

	balance, err := h.registry.BalanceOf(holder)
	if err != nil {
		h.writeError(w, "could not fetch balance", err)
		return
	}

	tokens := make([]interfaces.TokenID, 0, balance)
	for i := uint64(0); i < balance; i++ {
		id, err := h.registry.TokenOfHolderByIndex(holder, i)
		if errors.Is(err, interfaces.ErrIndexOutOfRange) {
			// the holder lost tokens while we were enumerating
			break
		}
		if err != nil {
			h.writeError(w, "could not enumerate tokens", err)
			return
		}
		tokens = append(tokens, id)
	}

	h.writeJSON(w, api.HolderResponse{Holder: holder, Balance: uint64(len(tokens)), Tokens: tokens})
}

// HandleGovernance returns the governance parameters and total supply.
//
// URL format: GET /api/v1/governance
func (h *Handler) HandleGovernance(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, api.GovernanceResponse{
		Owner:         h.registry.Owner(),
		Administrator: h.registry.Administrator(),
		MaxSupply:     h.registry.MaxSupply(),
		MetadataBase:  h.registry.MetadataBase(),
		TotalSupply:   h.registry.TotalSupply(),
	})
}

// HandleEvents returns the retained event log from sequence number "from"
// (default 1).
//
// URL format: GET /api/v1/events?from=N
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	from := uint64(1)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, fmt.Errorf("invalid from: %w", err).Error(), http.StatusBadRequest)
			return
		}
		from = parsed
	}

	events := h.registry.Events(from)
	if events == nil {
		events = []interfaces.Event{}
	}
	h.writeJSON(w, api.EventsResponse{Events: events})
}

func (h *Handler) acknowledge(w http.ResponseWriter, caller common.Address) {
	h.writeJSON(w, api.MutationResponse{Status: "ok", Caller: caller})
}

// HandleMint mints a token, with a utility binding when metadata is present.
// Only the owner may mint.
//
// URL format: POST /api/v1/tokens
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	var req api.MintRequest
	caller, reqErr := decodeSigned(r, &req)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	var err error
	if req.Metadata != nil {
		err = h.registry.MintWithUtilityBinding(caller, req.To, req.TokenID, *req.Metadata)
	} else {
		err = h.registry.Mint(caller, req.To, req.TokenID)
	}
	if err != nil {
		h.writeError(w, "mint failed", err)
		return
	}

	h.log.Info("Token minted", "tokenID", req.TokenID.String(), "to", req.To.Hex(), "caller", caller.Hex())
	h.acknowledge(w, caller)
}

// HandleTransfer moves a token on behalf of its holder, approved account or operator.
//
// URL format: POST /api/v1/tokens/{id}/transfer
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	id, reqErr := tokenIDParam(r)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}
	var req api.TransferRequest
	caller, reqErr := decodeSigned(r, &req)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	if err := h.registry.Transfer(caller, req.From, req.To, id); err != nil {
		h.writeError(w, "transfer failed", err)
		return
	}
	h.acknowledge(w, caller)
}

// HandleApprove sets the single-token approval.
//
// URL format: POST /api/v1/tokens/{id}/approve
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, reqErr := tokenIDParam(r)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}
	var req api.ApproveRequest
	caller, reqErr := decodeSigned(r, &req)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	if err := h.registry.Approve(caller, req.To, id); err != nil {
		h.writeError(w, "approve failed", err)
		return
	}
	h.acknowledge(w, caller)
}

// HandleSetOperator grants or revokes an operator for the caller's tokens.
//
// URL format: POST /api/v1/operators
func (h *Handler) HandleSetOperator(w http.ResponseWriter, r *http.Request) {
	var req api.OperatorRequest
	caller, reqErr := decodeSigned(r, &req)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	if err := h.registry.SetApprovalForAll(caller, req.Operator, req.Approved); err != nil {
		h.writeError(w, "set operator failed", err)
		return
	}
	h.acknowledge(w, caller)
}

// HandleSetUtilityBinding rebinds a token. Owner or administrator only.
//
// URL format: PUT /api/v1/tokens/{id}/utility
func (h *Handler) HandleSetUtilityBinding(w http.ResponseWriter, r *http.Request) {
	id, reqErr := tokenIDParam(r)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}
	var req api.UtilityBindingRequest
	caller, reqErr := decodeSigned(r, &req)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	if err := h.registry.SetUtilityBinding(caller, id, req.Address, req.Metadata); err != nil {
		h.writeError(w, "set utility binding failed", err)
		return
	}
	h.acknowledge(w, caller)
}

// HandleSetMaxSupply raises the supply cap. Owner only.
//
// URL format: PUT /api/v1/governance/max-supply
func (h *Handler) HandleSetMaxSupply(w http.ResponseWriter, r *http.Request) {
	var req api.MaxSupplyRequest
	caller, reqErr := decodeSigned(r, &req)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	if err := h.registry.SetMaxSupply(caller, req.MaxSupply); err != nil {
		h.writeError(w, "set max supply failed", err)
		return
	}
	h.acknowledge(w, caller)
}

// HandleSetMetadataBase replaces the token URI prefix. Owner only.
//
// URL format: PUT /api/v1/governance/metadata-base
func (h *Handler) HandleSetMetadataBase(w http.ResponseWriter, r *http.Request) {
	var req api.MetadataBaseRequest
	caller, reqErr := decodeSigned(r, &req)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	if err := h.registry.SetMetadataBase(caller, req.MetadataBase); err != nil {
		h.writeError(w, "set metadata base failed", err)
		return
	}
	h.acknowledge(w, caller)
}

// HandleSetAdministrator replaces the administrator. Owner only.
//
// URL format: PUT /api/v1/governance/administrator
func (h *Handler) HandleSetAdministrator(w http.ResponseWriter, r *http.Request) {
	var req api.AdministratorRequest
	caller, reqErr := decodeSigned(r, &req)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	if err := h.registry.SetAdministrator(caller, req.Administrator); err != nil {
		h.writeError(w, "set administrator failed", err)
		return
	}
	h.acknowledge(w, caller)
}

// HandleCheckpoint writes a registry snapshot to the configured storage
// backends. Owner only.
//
// URL format: POST /api/v1/governance/checkpoint
//
// Status codes:
//   - 200 OK: checkpoint stored
//   - 403 Forbidden: caller is not the owner
//   - 501 Not Implemented: no checkpoint backend configured
//   - 502 Bad Gateway: no backend accepted the checkpoint
func (h *Handler) HandleCheckpoint(w http.ResponseWriter, r *http.Request) {
	var req api.CheckpointRequest
	caller, reqErr := decodeSigned(r, &req)
	if reqErr != nil {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}

	if caller != h.registry.Owner() {
		h.writeError(w, "checkpoint refused", fmt.Errorf("%w: %s is not the owner", interfaces.ErrNotAuthorized, caller.Hex()))
		return
	}
	if h.checkpointer == nil {
		http.Error(w, "no checkpoint backend configured", http.StatusNotImplemented)
		return
	}

	id, seq, err := h.checkpointer.Save(r.Context(), h.registry)
	if err != nil {
		h.log.Error("Checkpoint failed", "err", err)
		http.Error(w, fmt.Errorf("checkpoint failed: %w", err).Error(), http.StatusBadGateway)
		return
	}

	h.log.Info("Checkpoint stored", "contentID", id.String(), "seq", seq)
	h.writeJSON(w, api.CheckpointResponse{ContentID: id.String(), Seq: seq})
}
