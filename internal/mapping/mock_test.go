package mapping

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/baseline-cli/internal/model"
)

type mockOracle struct {
	mock.Mock
	enabled bool
}

func (m *mockOracle) Enabled() bool { return m.enabled }

func (m *mockOracle) Propose(ctx context.Context, req ProposeRequest) (*Proposal, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Proposal), args.Error(1)
}

func (m *mockOracle) Validate(ctx context.Context, req ValidateRequest) (*Verdict, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Verdict), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Lookup(ctx context.Context, vendor, signature string) (*model.RegistryEntry, error) {
	args := m.Called(ctx, vendor, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RegistryEntry), args.Error(1)
}

type staticHints map[string]model.VendorHints

func (h staticHints) VendorHints(_ context.Context, vendor string) (model.VendorHints, error) {
	return h[vendor], nil
}
