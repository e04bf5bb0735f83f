// Package mcp exposes catalog actions as MCP (Model Context Protocol) tools.
//
// Each action of each resource becomes one tool named "<resource>__<action>".
// Calling the tool POSTs its arguments as JSON to the gateway at
// "{proxyURL}/proxy/{resource}/{action}" through an HTTP client that pays
// 402 challenges, so an agent can use priced tools without handling payment
// itself.
//
// # Usage
//
//	payer := proxyfox.NewPayer(wallet, wallet.Ledger())
//	client := http.WrapClient(nil, payer)
//
//	tools := mcp.NewToolServer(catalog, "http://localhost:8080", client)
//	if _, err := tools.Register(ctx); err != nil { ... }
//	err := tools.Run(ctx, &mcpsdk.StdioTransport{})
//
// Tool results carry the gateway response body as text. Non-2xx responses
// and payment failures are returned as results with IsError set, with the
// payment error code in the structured content when there is one.
package mcp
