// Package main implements bridgectl, a command line page client for the
// SprintBridge executor.
//
// Every call goes through the same path page code uses: the page API posts
// onto an in-process window, a relay forwards it to the executor and the
// response comes back as an envelope. By default the relay connects to a
// running executor over its runtime WebSocket; --local runs an executor in
// process against the configured state database instead.
//
// Usage:
//
//	bridgectl ping
//	bridgectl tracker login --url https://tracker.example.com --user me --password secret
//	bridgectl tracker issues --jql "project = ABC" --max 20
//	bridgectl docstore list "/sites/DWVD/Shared Documents"
//	bridgectl docstore download "/sites/DWVD/Shared Documents/plan.xlsx" -O plan.xlsx
//	bridgectl proxy fetch https://api.example.com/items
//	bridgectl script run sync.js
//	bridgectl status
//	bridgectl cookies import https://contoso.sharepoint.com "FedAuth=...; Path=/"
package main
