package grpc

import (
	"context"
	"fmt"

	"github.com/viralforge/marketplace-ledger/internal/domain"
	"github.com/viralforge/marketplace-ledger/internal/ports"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const getPayoutDestinationMethod = "/profile.v1.ProfileInternalService/GetPayoutDestination"

// ProfileClient reads verified seller bank details from the profile service.
type ProfileClient struct {
	conn *grpc.ClientConn
}

func NewProfileClient(endpoint string, opts ...grpc.DialOption) (*ProfileClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial profile grpc: %w", err)
	}
	return &ProfileClient{conn: conn}, nil
}

func (c *ProfileClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *ProfileClient) GetBankDetails(ctx context.Context, sellerID string) (domain.BankDetails, error) {
	req, err := structpb.NewStruct(map[string]any{
		"user_id":     sellerID,
		"method_type": "bank_transfer",
	})
	if err != nil {
		return domain.BankDetails{}, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, getPayoutDestinationMethod, req, resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.BankDetails{}, domain.ErrNotFound
		}
		return domain.BankDetails{}, fmt.Errorf("get payout destination: %w", err)
	}
	if !resp.GetFields()["verified"].GetBoolValue() {
		return domain.BankDetails{}, domain.ErrNotFound
	}
	fields := resp.GetFields()
	return domain.BankDetails{
		AccountHolder: fields["account_holder"].GetStringValue(),
		BankName:      fields["bank_name"].GetStringValue(),
		AccountNumber: fields["account_number"].GetStringValue(),
		BranchCode:    fields["branch_code"].GetStringValue(),
		AccountType:   fields["account_type"].GetStringValue(),
	}, nil
}

var _ ports.BankDetailsProvider = (*ProfileClient)(nil)
