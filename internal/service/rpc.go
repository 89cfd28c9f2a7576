package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service and procedure names. Bodies are google.protobuf.Struct, so any
// Connect, gRPC or gRPC-Web client can call them without generated stubs;
// over the Connect protocol with JSON they are plain JSON objects.
const (
	AuthServiceName = "tripshare.v1.AuthService"
	TripServiceName = "tripshare.v1.TripService"

	RegisterProcedure = "/" + AuthServiceName + "/Register"
	LoginProcedure    = "/" + AuthServiceName + "/Login"

	CreateTripProcedure    = "/" + TripServiceName + "/CreateTrip"
	GetTripProcedure       = "/" + TripServiceName + "/GetTrip"
	ListTripsProcedure     = "/" + TripServiceName + "/ListTrips"
	UpdatePeopleProcedure  = "/" + TripServiceName + "/UpdatePeople"
	SaveExpenseProcedure   = "/" + TripServiceName + "/SaveExpense"
	DeleteExpenseProcedure = "/" + TripServiceName + "/DeleteExpense"
	GetBalancesProcedure   = "/" + TripServiceName + "/GetBalances"
)

// toStruct converts a JSON-serializable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes a Struct into v. With strict set, unknown fields are
// rejected.
func fromStruct(s *structpb.Struct, v any, strict bool) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(v)
}

// unary adapts a typed handler to a Struct-bodied Connect procedure.
func unary[Req, Res any](procedure string, fn func(context.Context, *Req) (*Res, error), opts ...connect.HandlerOption) http.Handler {
	return connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
			in := new(Req)
			if err := fromStruct(req.Msg, in, true); err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid request: %w", err))
			}
			out, err := fn(ctx, in)
			if err != nil {
				return nil, err
			}
			msg, err := toStruct(out)
			if err != nil {
				return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode response: %w", err))
			}
			return connect.NewResponse(msg), nil
		},
		opts...,
	)
}

// Client calls Struct-bodied procedures with typed requests and responses.
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	token      string
	opts       []connect.ClientOption
}

// NewClient creates a client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), opts: opts}
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Call invokes procedure with req and decodes the response into Res.
func Call[Req, Res any](ctx context.Context, c *Client, procedure string, req *Req) (*Res, error) {
	msg, err := toStruct(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	client := connect.NewClient[structpb.Struct, structpb.Struct](c.httpClient, c.baseURL+procedure, c.opts...)
	request := connect.NewRequest(msg)
	if c.token != "" {
		request.Header().Set("Authorization", "Bearer "+c.token)
	}
	resp, err := client.CallUnary(ctx, request)
	if err != nil {
		return nil, err
	}
	out := new(Res)
	if err := fromStruct(resp.Msg, out, false); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}
