package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/go-utils/signature"
	"github.com/google/uuid"

	"github.com/ruteri/utility-registry/api"
	"github.com/ruteri/utility-registry/interfaces"
)

// DefaultSignatureTTL is how long a signed request stays valid.
const DefaultSignatureTTL = time.Minute

// StatusError is returned when the registry answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Message)
}

// RegistryClient talks to the registry HTTP API. Mutating calls are signed
// with Signer and run as its address; read-only use needs no signer.
type RegistryClient struct {
	// ServerAddr is the base URL of the registry server
	ServerAddr string

	Client *http.Client
	Signer *signature.Signer

	// SignatureTTL sets request deadlines; DefaultSignatureTTL when zero.
	SignatureTTL time.Duration
}

func NewRegistryClient(serverAddr string, signer *signature.Signer) *RegistryClient {
	return &RegistryClient{
		ServerAddr: serverAddr,
		Client:     http.DefaultClient,
		Signer:     signer,
	}
}

func (c *RegistryClient) signed() api.Signed {
	ttl := c.SignatureTTL
	if ttl == 0 {
		ttl = DefaultSignatureTTL
	}
	return api.Signed{
		Deadline: time.Now().Add(ttl).Unix(),
		Nonce:    uuid.NewString(),
	}
}

func (c *RegistryClient) do(req *http.Request, out any) error {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not request registry: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read registry response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("could not parse registry response: %w", err)
	}
	return nil
}

func (c *RegistryClient) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.ServerAddr+path, nil)
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	return c.do(req, out)
}

// send signs and submits a mutating request.
func (c *RegistryClient) send(method, path string, payload, out any) error {
	if c.Signer == nil {
		return fmt.Errorf("%s %s needs a signer", method, path)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not encode request: %w", err)
	}

	req, err := http.NewRequest(method, c.ServerAddr+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}

	sig, err := c.Signer.Create(api.SigningPayload(method, req.URL.Path, body))
	if err != nil {
		return fmt.Errorf("could not sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.SignatureHeader, sig)

	return c.do(req, out)
}

func (c *RegistryClient) Mint(to common.Address, id interfaces.TokenID) error {
	return c.send(http.MethodPost, "/api/v1/tokens", api.MintRequest{Signed: c.signed(), To: to, TokenID: id}, nil)
}

func (c *RegistryClient) MintWithUtilityBinding(to common.Address, id interfaces.TokenID, metadata string) error {
	return c.send(http.MethodPost, "/api/v1/tokens", api.MintRequest{Signed: c.signed(), To: to, TokenID: id, Metadata: &metadata}, nil)
}

func (c *RegistryClient) Transfer(from, to common.Address, id interfaces.TokenID) error {
	return c.send(http.MethodPost, "/api/v1/tokens/"+id.String()+"/transfer", api.TransferRequest{Signed: c.signed(), From: from, To: to}, nil)
}

func (c *RegistryClient) Approve(to common.Address, id interfaces.TokenID) error {
	return c.send(http.MethodPost, "/api/v1/tokens/"+id.String()+"/approve", api.ApproveRequest{Signed: c.signed(), To: to}, nil)
}

func (c *RegistryClient) SetApprovalForAll(operator common.Address, approved bool) error {
	return c.send(http.MethodPost, "/api/v1/operators", api.OperatorRequest{Signed: c.signed(), Operator: operator, Approved: approved}, nil)
}

func (c *RegistryClient) SetUtilityBinding(id interfaces.TokenID, bound common.Address, metadata string) error {
	return c.send(http.MethodPut, "/api/v1/tokens/"+id.String()+"/utility", api.UtilityBindingRequest{Signed: c.signed(), Address: bound, Metadata: metadata}, nil)
}

func (c *RegistryClient) SetMaxSupply(maxSupply uint64) error {
	return c.send(http.MethodPut, "/api/v1/governance/max-supply", api.MaxSupplyRequest{Signed: c.signed(), MaxSupply: maxSupply}, nil)
}

func (c *RegistryClient) SetMetadataBase(base string) error {
	return c.send(http.MethodPut, "/api/v1/governance/metadata-base", api.MetadataBaseRequest{Signed: c.signed(), MetadataBase: base}, nil)
}

func (c *RegistryClient) SetAdministrator(administrator common.Address) error {
	return c.send(http.MethodPut, "/api/v1/governance/administrator", api.AdministratorRequest{Signed: c.signed(), Administrator: administrator}, nil)
}

// Checkpoint asks the server to store a snapshot. Only the owner may.
func (c *RegistryClient) Checkpoint() (*api.CheckpointResponse, error) {
	var resp api.CheckpointResponse
	if err := c.send(http.MethodPost, "/api/v1/governance/checkpoint", api.CheckpointRequest{Signed: c.signed()}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RegistryClient) Token(id interfaces.TokenID) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.get("/api/v1/tokens/"+id.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RegistryClient) Utility(id interfaces.TokenID) (*api.UtilityResponse, error) {
	var resp api.UtilityResponse
	if err := c.get("/api/v1/tokens/"+id.String()+"/utility", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RegistryClient) Holder(holder common.Address) (*api.HolderResponse, error) {
	var resp api.HolderResponse
	if err := c.get("/api/v1/holders/"+holder.Hex(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RegistryClient) Governance() (*api.GovernanceResponse, error) {
	var resp api.GovernanceResponse
	if err := c.get("/api/v1/governance", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RegistryClient) Events(fromSeq uint64) ([]interfaces.Event, error) {
	query := url.Values{"from": []string{strconv.FormatUint(fromSeq, 10)}}
	var resp api.EventsResponse
	if err := c.get("/api/v1/events?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}
