package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/mnehpets/rpcserve/ginrpc"
	"github.com/mnehpets/rpcserve/jsonrpc"
)

type Calc struct{}

type DivParams struct {
	_ struct{} `jsonrpc:"div"`
	A float64  `json:"a"`
	B float64  `json:"b"`
}

func (c *Calc) Div(ctx context.Context, p DivParams) (float64, error) {
	if p.B == 0 {
		return 0, jsonrpc.NewFault(-32000, "division by zero")
	}
	return p.A / p.B, nil
}

func main() {
	r := gin.Default()
	ginrpc.Handle(r, "/rpc", jsonrpc.NewServer(jsonrpc.NewObject(&Calc{})))

	log.Println("Listening on :8080")
	log.Fatal(r.Run(":8080"))
}
