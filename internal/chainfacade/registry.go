package chainfacade

import (
	"context"
	"fmt"
)

// Registry is the opaque registry fact store every component depends on
// (spec §6). Components issue these calls (five writes plus the
// NodeAttested read) and treat the chain as a black box; they never read
// chain-internal state directly.
type Registry interface {
	// RegisterNode records a new node's address and public attestation
	// metadata. Returns the chain transaction id.
	RegisterNode(ctx context.Context, nodeID, address, metadataHash string) (string, error)

	// SubmitAttestation records the outcome of an attestation verification
	// for nodeID. ok is false for a failed/expired verification.
	SubmitAttestation(ctx context.Context, nodeID string, ok bool, evidenceHash string) (string, error)

	// Heartbeat records node liveness at the given unix timestamp.
	Heartbeat(ctx context.Context, nodeID string, unixSeconds int64) (string, error)

	// CreateDatabase records creation of a new content database/collection
	// bucket owned by ownerID.
	CreateDatabase(ctx context.Context, databaseID, ownerID string) (string, error)

	// DepositFees records an on-chain fee deposit for daoID from source,
	// denominated in the smallest on-chain unit.
	DepositFees(ctx context.Context, daoID, source string, amount int64) (string, error)

	// NodeAttested reports whether nodeID currently holds a live, valid
	// attestation fact on-chain.
	NodeAttested(ctx context.Context, nodeID string) (bool, error)
}

// neoRegistry implements Registry against a Neo N3 smart contract, grounded
// on infrastructure/chain/base_contract.go's thin-wrapper pattern.
type neoRegistry struct {
	client *Client
}

// NewNeoRegistry wraps client as a Registry backed by the configured
// contract hash.
func NewNeoRegistry(client *Client) Registry {
	return &neoRegistry{client: client}
}

func (r *neoRegistry) RegisterNode(ctx context.Context, nodeID, address, metadataHash string) (string, error) {
	return r.client.invokeVoid(ctx, "registerNode",
		StringParam(nodeID), StringParam(address), StringParam(metadataHash))
}

func (r *neoRegistry) SubmitAttestation(ctx context.Context, nodeID string, ok bool, evidenceHash string) (string, error) {
	status := "valid"
	if !ok {
		status = "invalid"
	}
	return r.client.invokeVoid(ctx, "submitAttestation",
		StringParam(nodeID), StringParam(status), StringParam(evidenceHash))
}

func (r *neoRegistry) Heartbeat(ctx context.Context, nodeID string, unixSeconds int64) (string, error) {
	return r.client.invokeVoid(ctx, "heartbeat", StringParam(nodeID), IntegerParam(unixSeconds))
}

func (r *neoRegistry) CreateDatabase(ctx context.Context, databaseID, ownerID string) (string, error) {
	return r.client.invokeVoid(ctx, "createDatabase", StringParam(databaseID), StringParam(ownerID))
}

func (r *neoRegistry) DepositFees(ctx context.Context, daoID, source string, amount int64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("chainfacade: deposit amount must be positive, got %d", amount)
	}
	return r.client.invokeVoid(ctx, "depositFees", StringParam(daoID), StringParam(source), IntegerParam(amount))
}

func (r *neoRegistry) NodeAttested(ctx context.Context, nodeID string) (bool, error) {
	return r.client.invokeBool(ctx, "isNodeAttested", StringParam(nodeID))
}
