package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/viralforge/marketplace-ledger/internal/application"
	"github.com/viralforge/marketplace-ledger/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const LedgerServiceName = "ledger.v1.LedgerInternalService"

// LedgerInternalServer exposes read-only ledger lookups to other platform
// services. Requests and responses are structpb.Struct so callers need no
// generated stubs.
type LedgerInternalServer struct {
	service *application.Service
}

func NewLedgerInternalServer(service *application.Service) *LedgerInternalServer {
	return &LedgerInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc *LedgerInternalServer) {
	server.RegisterService(&ledgerServiceDesc, svc)
}

type ledgerInternalService interface {
	GetPurchaseUnit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetEscrowHold(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetSellerBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: LedgerServiceName,
	HandlerType: (*ledgerInternalService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPurchaseUnit", Handler: unaryHandler("GetPurchaseUnit", ledgerInternalService.GetPurchaseUnit)},
		{MethodName: "GetEscrowHold", Handler: unaryHandler("GetEscrowHold", ledgerInternalService.GetEscrowHold)},
		{MethodName: "GetSellerBalance", Handler: unaryHandler("GetSellerBalance", ledgerInternalService.GetSellerBalance)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger_internal.proto",
}

func unaryHandler(method string, call func(ledgerInternalService, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(ledgerInternalService)
		if interceptor == nil {
			return call(svc, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + LedgerServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(svc, ctx, req.(*structpb.Struct))
		})
	}
}

func (s *LedgerInternalServer) GetPurchaseUnit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredField(req, "purchase_unit_id")
	if err != nil {
		return nil, err
	}
	unit, err := s.service.GetPurchase(ctx, internalActor(), id)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"purchase_unit_id":     unit.PurchaseUnitID,
		"kind":                 string(unit.Kind),
		"buyer_id":             unit.BuyerID,
		"seller_id":            unit.SellerID,
		"status":               string(unit.Status),
		"currency":             unit.Currency,
		"gross_amount":         float64(unit.Fees.GrossAmount),
		"seller_payout_amount": float64(unit.Fees.SellerPayoutAmount),
		"policy_version":       float64(unit.Fees.PolicyVersion),
		"updated_at":           unit.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *LedgerInternalServer) GetEscrowHold(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var (
		hold domain.EscrowHold
		err  error
	)
	if id := stringField(req, "hold_id"); id != "" {
		hold, err = s.service.GetHold(ctx, internalActor(), id)
	} else if id := stringField(req, "purchase_unit_id"); id != "" {
		hold, err = s.service.GetHoldByPurchase(ctx, internalActor(), id)
	} else {
		return nil, status.Error(codes.InvalidArgument, "hold_id or purchase_unit_id is required")
	}
	if err != nil {
		return nil, toStatus(err)
	}
	out := map[string]any{
		"hold_id":              hold.HoldID,
		"purchase_unit_id":     hold.PurchaseUnitID,
		"seller_id":            hold.SellerID,
		"status":               string(hold.Status),
		"currency":             hold.Currency,
		"gross_amount":         float64(hold.GrossAmount),
		"net_amount":           float64(hold.NetAmount),
		"seller_payout_amount": float64(hold.SellerPayoutAmount),
		"released_amount":      float64(hold.ReleasedAmount),
		"refunded_amount":      float64(hold.RefundedAmount),
	}
	if hold.AvailableAt != nil {
		out["available_at"] = hold.AvailableAt.UTC().Format(time.RFC3339)
	}
	return structpb.NewStruct(out)
}

func (s *LedgerInternalServer) GetSellerBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sellerID, err := requiredField(req, "seller_id")
	if err != nil {
		return nil, err
	}
	balance, err := s.service.GetSellerBalance(ctx, internalActor(), sellerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"seller_id":     balance.SellerID,
		"currency":      balance.Currency,
		"held":          float64(balance.Held),
		"disputed":      float64(balance.Disputed),
		"reserved":      float64(balance.Reserved),
		"available":     float64(balance.Available),
		"batched":       float64(balance.Batched),
		"paid_out":      float64(balance.PaidOut),
		"calculated_at": balance.CalculatedAt.UTC().Format(time.RFC3339),
	})
}

// internalActor is trusted; the gRPC listener is only reachable inside the mesh.
func internalActor() application.Actor {
	return application.SystemActor("grpc-internal")
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func requiredField(req *structpb.Struct, name string) (string, error) {
	v := stringField(req, name)
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return v, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
