// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package realtime

// Error codes.
const (
	CodeInvalidConfig   = "REALTIME_INVALID_CONFIG"
	CodeInvalidRoute    = "REALTIME_INVALID_ROUTE"
	CodeInvalidSchema   = "REALTIME_INVALID_SCHEMA"
	CodeInvalidPayload  = "REALTIME_INVALID_PAYLOAD"
	CodeConnectFailed   = "REALTIME_CONNECT_FAILED"
	CodeNotConnected    = "REALTIME_NOT_CONNECTED"
	CodeAuthorizeFailed = "REALTIME_AUTHORIZE_FAILED"
	CodeSendFailed      = "REALTIME_SEND_FAILED"
	CodeProtocol        = "REALTIME_PROTOCOL"
	CodeSubscribeFailed = "REALTIME_SUBSCRIBE_FAILED"
	CodeConnectionLost  = "REALTIME_CONNECTION_LOST"
)
