// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/webmessenger/api"
	"github.com/bureau-foundation/webmessenger/lib/clock"
	"github.com/bureau-foundation/webmessenger/transport"
	"github.com/bureau-foundation/webmessenger/wire"
)

// maxReconfigureAttempts bounds the refresh-then-configure loop on an
// authenticated session before it fails with AuthFailed.
const maxReconfigureAttempts = 3

// disconnectReason is the close reason sent on user-initiated
// disconnect.
const disconnectReason = "The user has closed the connection."

// clearConversationErrorPattern recognizes gateway error text about a
// rejected clear-conversation request, which is remapped to its
// dedicated error code.
var clearConversationErrorPattern = regexp.MustCompile(`(?i)conversation clear`)

// Config holds configuration for creating a Client.
type Config struct {
	// DeploymentID identifies the messenger deployment.
	DeploymentID string
	// Socket is the transport connection. Required.
	Socket transport.Socket
	// API calls the gateway HTTP endpoints. Required.
	API *api.Client
	// Deployment is the deployment configuration snapshot consulted
	// for feature toggles. May be nil; all toggles then read disabled.
	Deployment *wire.DeploymentConfig
	// TokenStore supplies the session token. If nil, an in-memory
	// store is used.
	TokenStore TokenStore
	// Clock abstracts time for cooldowns and reconnect backoff. If
	// nil, the real clock is used.
	Clock clock.Clock
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
	// MaxReconnectAttempts bounds automatic reconnection. <= 0 selects
	// the default.
	MaxReconnectAttempts int
	// AutoRefreshTokenWhenExpired refreshes a held auth JWT that is
	// past its expiry claim instead of presenting it to the gateway.
	AutoRefreshTokenWhenExpired bool
}

// Client is a stateful web messaging client. It multiplexes one socket
// to the messaging gateway and exposes the session through three
// listener streams: state changes, message events, and domain events.
//
// All listeners are invoked synchronously from the goroutine that
// triggered the change and must not call back into the Client.
type Client struct {
	logger       *slog.Logger
	socket       transport.Socket
	api          *api.Client
	deployment   *wire.DeploymentConfig
	deploymentID string
	token        string
	bg           context.Context

	state            *StateMachine
	events           *EventHandler
	store            *MessageStore
	attachments      *AttachmentHandler
	customAttributes *CustomAttributesStore
	auth             *AuthHandler
	reconnection     *ReconnectionHandler
	healthCheck      *HealthCheckProvider
	userTyping       *UserTypingProvider

	mu                  sync.Mutex
	authenticated       bool
	startingNewSession  bool
	sendingAutostart    bool
	reconfigureAttempts int
	sessionJWT          string
	jwtWaiters          []chan string
}

// NewClient creates a messaging client. The session token is obtained
// from the token store immediately; the socket stays closed until
// Connect.
func NewClient(config Config) (*Client, error) {
	if config.Socket == nil {
		return nil, fmt.Errorf("messenger: Socket is required")
	}
	if config.API == nil {
		return nil, fmt.Errorf("messenger: API is required")
	}
	if config.DeploymentID == "" {
		return nil, fmt.Errorf("messenger: DeploymentID is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	tokenStore := config.TokenStore
	if tokenStore == nil {
		tokenStore = NewMemoryTokenStore()
	}
	token, err := tokenStore.Token()
	if err != nil {
		return nil, fmt.Errorf("messenger: failed to obtain session token: %w", err)
	}

	events := NewEventHandler(logger)
	store := NewMessageStore(logger)
	deployment := config.Deployment
	client := &Client{
		logger:       logger,
		socket:       config.Socket,
		api:          config.API,
		deployment:   deployment,
		deploymentID: config.DeploymentID,
		token:        token,
		bg:           context.Background(),

		state:            NewStateMachine(logger),
		events:           events,
		store:            store,
		customAttributes: NewCustomAttributesStore(logger),
		reconnection:     NewReconnectionHandler(clk, logger, config.MaxReconnectAttempts),
		healthCheck:      NewHealthCheckProvider(clk, logger),
		userTyping: NewUserTypingProvider(clk, logger, func() bool {
			return deployment.TypingIndicatorEnabled()
		}),
	}
	client.attachments = NewAttachmentHandler(config.API, logger, store.UpdateAttachmentState)
	client.auth = NewAuthHandler(config.API, clk, events, logger, config.AutoRefreshTokenWhenExpired)
	return client, nil
}

// Token returns the session token.
func (c *Client) Token() string { return c.token }

// CurrentState returns the current session state.
func (c *Client) CurrentState() State { return c.state.Current() }

// DeploymentConfig returns the deployment configuration snapshot, or
// nil when none was provided.
func (c *Client) DeploymentConfig() *wire.DeploymentConfig { return c.deployment }

// Conversation returns a copy of the held conversation, oldest first.
func (c *Client) Conversation() []Message { return c.store.Conversation() }

// PendingMessage returns a copy of the pending message slot.
func (c *Client) PendingMessage() Message { return c.store.PendingMessage() }

// CustomAttributes returns a copy of the held custom attributes.
func (c *Client) CustomAttributes() map[string]string { return c.customAttributes.Get() }

// SetStateListener registers the session state listener.
func (c *Client) SetStateListener(listener func(StateChange)) {
	c.state.SetListener(listener)
}

// SetMessageListener registers the conversation message listener.
func (c *Client) SetMessageListener(listener func(MessageEvent)) {
	c.store.SetListener(listener)
}

// SetEventListener registers the domain event listener.
func (c *Client) SetEventListener(listener func(Event)) {
	c.events.SetListener(listener)
}

// Connect opens the socket for an anonymous session. Legal from Idle,
// Closed, and Error.
func (c *Client) Connect() error { return c.connect(false) }

// ConnectAuthenticatedSession opens the socket for an authenticated
// session. The configure step requires a JWT obtained via Authorize;
// without one the client attempts a token refresh first.
func (c *Client) ConnectAuthenticatedSession() error { return c.connect(true) }

func (c *Client) connect(authenticated bool) error {
	c.mu.Lock()
	if err := c.state.OnConnect(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.authenticated = authenticated
	c.mu.Unlock()
	// Open outside the lock: socket callbacks may arrive on this
	// goroutine and re-enter the client.
	c.socket.Open((*socketListener)(c))
	return nil
}

// Disconnect closes the session with a normal closure. Any scheduled
// reconnection attempt is cancelled.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.reconnection.Clear()
	if err := c.state.OnClosing(transport.CloseNormalClosure, disconnectReason); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	c.socket.Close(transport.CloseNormalClosure, disconnectReason)
	return nil
}

// SendMessage sends a text message. customAttributes, when non-empty,
// merge into the attribute store and ride along with this message.
func (c *Client) SendMessage(text string, customAttributes map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.CheckConfigured("sendMessage"); err != nil {
		return err
	}
	c.customAttributes.Add(customAttributes)
	channel := c.prepareCustomAttributesLocked()
	c.attachments.OnSending()
	request := c.store.PrepareMessage(c.token, text, channel)
	c.sendLocked(request)
	return nil
}

// SendQuickReply sends the user's quick-reply selection. Pending
// custom attributes ride along, as with SendMessage.
func (c *Client) SendQuickReply(reply QuickReplyOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.CheckConfigured("sendQuickReply"); err != nil {
		return err
	}
	channel := c.prepareCustomAttributesLocked()
	request := c.store.PrepareQuickReply(c.token, reply, channel)
	c.sendLocked(request)
	return nil
}

// SendHealthCheck sends a health-check echo, rate-limited to one per
// 30 seconds. A suppressed health check is not an error.
func (c *Client) SendHealthCheck() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.CheckConfigured("sendHealthCheck"); err != nil {
		return err
	}
	if frame := c.healthCheck.EncodeRequest(c.token); frame != "" {
		c.socket.Send(frame)
	}
	return nil
}

// IndicateTyping signals that the user is composing a message,
// rate-limited to one per 5 seconds and gated on the deployment
// feature toggle. A suppressed indicator is not an error.
func (c *Client) IndicateTyping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.CheckConfigured("indicateTyping"); err != nil {
		return err
	}
	if frame := c.userTyping.EncodeRequest(c.token); frame != "" {
		c.socket.Send(frame)
	}
	return nil
}

// Attach starts the upload of a file attachment and returns its
// client-generated ID. Upload progress, when a callback is given, is
// reported as a percentage. The attachment rides along with the next
// SendMessage once uploaded.
func (c *Client) Attach(data []byte, fileName string, progress func(float64)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.CheckConfigured("attach"); err != nil {
		return "", err
	}
	attachmentID := uuid.NewString()
	request := c.attachments.Prepare(c.token, attachmentID, fileName, data, progress)
	c.sendLocked(request)
	return attachmentID, nil
}

// Detach deletes an attachment that has not been sent yet. Detaching
// an unknown or already confirmed attachment is a no-op.
func (c *Client) Detach(attachmentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.CheckConfigured("detach"); err != nil {
		return err
	}
	request := c.attachments.Detach(c.token, attachmentID)
	if request == nil {
		c.logger.Debug("nothing to detach", "attachment_id", attachmentID)
		return nil
	}
	c.sendLocked(*request)
	return nil
}

// FetchNextPage fetches the next (older) page of conversation history
// over HTTP and prepends it to the conversation. At the start of the
// conversation this is a no-op that re-announces HistoryFetched. Fetch
// failures surface as an error event, not a session failure.
func (c *Client) FetchNextPage(ctx context.Context) error {
	c.mu.Lock()
	if err := c.state.CheckConfiguredOrReadOnly("fetchNextPage"); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.store.StartOfConversation() {
		c.store.UpdateMessageHistory(nil, len(c.store.Conversation()))
		c.mu.Unlock()
		return nil
	}
	page := c.store.NextPage()
	var jwt string
	switch {
	case c.authenticated:
		jwt = c.auth.JWT()
		c.mu.Unlock()
	case c.sessionJWT != "":
		jwt = c.sessionJWT
		c.mu.Unlock()
	default:
		// Anonymous sessions authorize history fetches with a
		// short-lived JWT handed out over the socket on request.
		waiter := make(chan string, 1)
		c.jwtWaiters = append(c.jwtWaiters, waiter)
		c.sendLocked(wire.NewGetJwtRequest(c.token))
		c.mu.Unlock()
		select {
		case jwt = <-waiter:
		case <-ctx.Done():
			c.logger.Warn("history fetch cancelled",
				"code", int(CodeCancellation), "error", ctx.Err())
			return nil
		}
	}

	result, err := c.api.GetMessages(ctx, jwt, page, api.DefaultPageSize)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("history fetch cancelled",
				"code", int(CodeCancellation), "error", err)
			return nil
		}
		corrective := CorrectiveActionUnknown
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			corrective = ErrorCodeFromHTTP(apiErr.StatusCode).CorrectiveAction()
		}
		c.events.OnEvent(ErrorEvent{
			Code:             CodeHistoryFetchFailure,
			Message:          err.Error(),
			CorrectiveAction: corrective,
		})
		return nil
	}

	messages := messagesFromHistory(result.Entities)
	c.mu.Lock()
	c.store.UpdateMessageHistory(messages, result.Total)
	c.mu.Unlock()
	return nil
}

// InvalidateConversationCache drops the held conversation and resets
// history pagination.
func (c *Client) InvalidateConversationCache() {
	c.store.InvalidateConversationCache()
}

// ClearConversation wipes the conversation server-side. When the
// deployment disables the feature, the rejection surfaces as an error
// event and nothing is sent.
func (c *Client) ClearConversation() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.CheckConfiguredOrReadOnly("clearConversation"); err != nil {
		return err
	}
	if !c.deployment.ClearConversationEnabled() {
		c.events.OnEvent(ErrorEvent{
			Code:             CodeClearConversationFailure,
			Message:          errMessageFailedToClearConversation,
			CorrectiveAction: CorrectiveActionForbidden,
		})
		return nil
	}
	c.sendLocked(wire.NewClearConversationRequest(c.token))
	return nil
}

// StartNewChat starts a new conversation after the previous one ended.
// Only legal in the ReadOnly state: the client asks the server to
// close every connection on the session, then reconfigures with a
// start-new flag.
func (c *Client) StartNewChat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.state.CheckCanStartNewChat(); err != nil {
		return err
	}
	c.startingNewSession = true
	c.sendLocked(wire.NewCloseSessionRequest(c.token, true))
	return nil
}

// Authorize exchanges an OAuth authorization code for the JWT used by
// authenticated sessions. The outcome is also announced through the
// event listener.
func (c *Client) Authorize(ctx context.Context, authCode, redirectURI, codeVerifier string) error {
	return c.auth.Authorize(ctx, authCode, redirectURI, codeVerifier)
}

// LogoutFromAuthenticatedSession revokes the session's JWT. The server
// confirms by broadcasting a logout over the socket, which closes the
// session.
func (c *Client) LogoutFromAuthenticatedSession(ctx context.Context) error {
	c.mu.Lock()
	if err := c.state.CheckConfigured("logout"); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	return c.auth.Logout(ctx)
}

// prepareCustomAttributesLocked wraps unsent custom attributes in a
// channel for the outgoing message and marks them in flight.
func (c *Client) prepareCustomAttributesLocked() *wire.Channel {
	channel := wire.NewChannel(c.customAttributes.ToSend())
	if channel != nil {
		c.customAttributes.OnSending()
	}
	return channel
}

func (c *Client) sendLocked(request any) {
	data, err := json.Marshal(request)
	if err != nil {
		c.logger.Error("failed to encode request", "error", err)
		return
	}
	// Socket.Send never delivers listener callbacks synchronously, so
	// holding the lock here cannot deadlock.
	c.socket.Send(string(data))
}

// configureSessionLocked sends the configure request for the session
// flavor selected at connect time. On an authenticated session without
// a usable JWT it refreshes first, bounded by maxReconfigureAttempts.
func (c *Client) configureSessionLocked(startNew bool) {
	if !c.authenticated {
		c.sendLocked(wire.NewConfigureSessionRequest(c.token, c.deploymentID, startNew))
		c.state.OnConfiguring()
		return
	}
	jwt := c.auth.JWT()
	if jwt == NoJWT {
		if c.reconfigureAttempts < maxReconfigureAttempts {
			c.reconfigureAttempts++
			c.logger.Info("no usable auth jwt, refreshing before configure",
				"attempt", c.reconfigureAttempts)
			c.refreshAndThen(func() func() {
				c.configureSessionLocked(startNew)
				return nil
			})
			return
		}
		c.transitionToErrorLocked(CodeAuthFailed, errMessageFailedToConfigureSession)
		return
	}
	c.sendLocked(wire.NewConfigureAuthenticatedSessionRequest(c.token, c.deploymentID, startNew, jwt))
	c.state.OnConfiguring()
}

// refreshAndThen refreshes the auth JWT in the background, then runs
// action with the client lock held. action may return a follow-up to
// run after the lock is released. A failed refresh is terminal for the
// session unless it was a cancellation. Must be called with the lock
// held.
func (c *Client) refreshAndThen(action func() func()) {
	go func() {
		err := c.auth.Refresh(c.bg)
		var after func()
		c.mu.Lock()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Warn("token refresh cancelled",
					"code", int(CodeCancellation), "error", err)
			} else {
				code := CodeRefreshAuthTokenFailure
				var authErr *AuthError
				if errors.As(err, &authErr) {
					code = authErr.Code
				}
				c.transitionToErrorLocked(code, err.Error())
			}
		} else {
			after = action()
		}
		c.mu.Unlock()
		if after != nil {
			after()
		}
	}()
}

// cleanUpLocked resets per-connection state after the session closed.
func (c *Client) cleanUpLocked() {
	c.store.InvalidateConversationCache()
	c.customAttributes.OnSessionClosed()
	c.attachments.ClearAll()
	c.healthCheck.Clear()
	c.userTyping.Clear()
	c.reconnection.Clear()
	c.reconfigureAttempts = 0
	c.sendingAutostart = false
	c.sessionJWT = ""
	// Waiting history fetches proceed with no JWT and surface the
	// server's rejection as a history error event.
	for _, waiter := range c.jwtWaiters {
		close(waiter)
	}
	c.jwtWaiters = nil
}

// transitionToErrorLocked ends the session with a terminal error.
func (c *Client) transitionToErrorLocked(code ErrorCode, message string) {
	c.state.OnError(code, message)
	c.store.InvalidateConversationCache()
	c.attachments.ClearAll()
	c.reconnection.Clear()
	c.reconfigureAttempts = 0
	c.sendingAutostart = false
	c.startingNewSession = false
}

// socketListener adapts the Client to transport.Listener without
// exporting the callbacks on the Client itself.
type socketListener Client

func (l *socketListener) client() *Client { return (*Client)(l) }

func (l *socketListener) OnOpen() {
	c := l.client()
	c.mu.Lock()
	c.state.OnConnectionOpened()
	c.configureSessionLocked(false)
	c.mu.Unlock()
}

func (l *socketListener) OnMessage(text string) {
	c := l.client()
	frame, err := wire.Decode([]byte(text))
	if err != nil {
		c.logger.Error("dropping malformed frame", "error", err)
		return
	}
	c.mu.Lock()
	after := c.handleFrameLocked(frame)
	c.mu.Unlock()
	if after != nil {
		after()
	}
}

func (l *socketListener) OnClosing(code int, reason string) {
	c := l.client()
	c.mu.Lock()
	if err := c.state.OnClosing(code, reason); err != nil {
		c.logger.Debug("ignoring close handshake", "error", err)
	}
	c.mu.Unlock()
}

func (l *socketListener) OnClosed(code int, reason string) {
	c := l.client()
	c.mu.Lock()
	c.onClosedLocked(code, reason)
	c.mu.Unlock()
}

func (l *socketListener) OnFailure(err error, kind transport.FailureKind) {
	c := l.client()
	c.logger.Error("socket failure", "kind", kind.String(), "error", err)
	code := CodeWebsocketError
	switch kind {
	case transport.FailureAccessDenied:
		code = CodeWebsocketAccessDenied
	case transport.FailureNetworkDisabled:
		code = CodeNetworkDisabled
	}
	c.mu.Lock()
	c.handleConnectionFailureLocked(code, err.Error())
	c.mu.Unlock()
}

func (c *Client) onClosedLocked(code int, reason string) {
	if c.state.Current().Kind == StateClosed {
		return
	}
	c.state.OnClosed(code, reason)
	c.cleanUpLocked()
	c.startingNewSession = false
}

// handleFrameLocked dispatches one decoded frame. The returned
// follow-up, if any, runs after the client lock is released; it is
// used for paths that must re-enter the client, such as closing the
// socket.
func (c *Client) handleFrameLocked(frame *wire.Frame) func() {
	switch body := frame.Body.(type) {
	case string:
		c.handleErrorLocked(ErrorCodeFromFrame(frame.Code), body)
	case wire.SessionResponse:
		c.handleSessionResponseLocked(body)
	case wire.StructuredMessage:
		c.handleStructuredMessageLocked(body)
	case wire.JwtResponse:
		c.sessionJWT = body.JWT
		for _, waiter := range c.jwtWaiters {
			waiter <- body.JWT
		}
		c.jwtWaiters = nil
	case wire.PresignedURLResponse:
		c.attachments.Upload(c.bg, body)
	case wire.UploadSuccessEvent:
		c.attachments.OnUploadSuccess(body)
	case wire.UploadFailureEvent:
		c.attachments.OnError(body.AttachmentID, ErrorCodeFromFrame(body.ErrorCode), body.ErrorMessage)
	case wire.GenerateURLError:
		c.attachments.OnError(body.AttachmentID, ErrorCodeFromFrame(body.ErrorCode), body.ErrorMessage)
	case wire.AttachmentDeletedResponse:
		c.attachments.OnDetached(body.AttachmentID)
	case wire.SessionExpiredEvent:
		c.handleErrorLocked(CodeSessionHasExpired, "session expired")
	case wire.TooManyRequestsMessage:
		c.handleErrorLocked(CodeRequestRateTooHigh,
			fmt.Sprintf("%s. Retry after %d seconds.", body.ErrorMessage, body.RetryAfter))
	case wire.ConnectionClosedEvent:
		return func() {
			if err := c.Disconnect(); err != nil {
				c.logger.Debug("disconnect after server close", "error", err)
			}
			c.events.OnEvent(ConnectionClosedEvent{})
		}
	case wire.LogoutEvent:
		c.auth.Clear()
		return func() {
			if err := c.Disconnect(); err != nil {
				c.logger.Debug("disconnect after logout", "error", err)
			}
			c.events.OnEvent(LoggedOutEvent{})
		}
	case wire.SessionClearedEvent:
		c.events.OnEvent(ConversationClearedEvent{})
	case wire.UnknownBody:
		c.logger.Warn("ignoring frame with unknown class", "class", body.Class)
	}
	return nil
}

func (c *Client) handleSessionResponseLocked(response wire.SessionResponse) {
	c.reconnection.Clear()
	c.reconfigureAttempts = 0
	if response.ReadOnly {
		c.state.OnReadOnly()
		if !response.Connected && c.startingNewSession {
			// The old session is gone; reconfigure with a start-new
			// flag to open the fresh conversation.
			c.cleanUpLocked()
			c.configureSessionLocked(true)
		}
		return
	}
	c.startingNewSession = false
	c.state.OnSessionConfigured(response.Connected, response.NewSession)
	if response.NewSession && c.deployment.AutostartEnabled() {
		c.sendAutostartLocked()
	}
}

func (c *Client) sendAutostartLocked() {
	c.sendingAutostart = true
	channel := c.prepareCustomAttributesLocked()
	c.sendLocked(wire.NewAutoStartRequest(c.token, channel))
}

func (c *Client) handleStructuredMessageLocked(sm wire.StructuredMessage) {
	switch sm.Type {
	case wire.MessageTypeText:
		if sm.IsHealthCheckResponse() {
			c.events.OnEvent(HealthCheckedEvent{})
			return
		}
		message := messageFromWire(sm)
		c.store.Update(message)
		if message.Direction == DirectionInbound {
			// The echo of our own message confirms everything that
			// rode along with it.
			c.customAttributes.OnSent()
			c.attachments.OnSent(message.Attachments)
			c.userTyping.Clear()
		}
	case wire.MessageTypeEvent:
		c.handleEventMessageLocked(sm)
	case wire.MessageTypeStructured:
		message := messageFromWire(sm)
		if message.Type != MessageTypeQuickReply {
			c.logger.Warn("dropping structured message without quick replies",
				"id", sm.ID)
			return
		}
		c.store.Update(message)
	default:
		c.logger.Warn("ignoring message with unknown type", "type", sm.Type)
	}
}

func (c *Client) handleEventMessageLocked(sm wire.StructuredMessage) {
	message := messageFromWire(sm)
	if sm.IsOutbound() {
		readOnly := sm.Metadata["readOnly"] == "true"
		for _, event := range message.Events {
			if _, ok := event.(ConversationDisconnectEvent); ok && readOnly {
				c.state.OnReadOnly()
			}
			c.events.OnEvent(event)
		}
		return
	}
	// Inbound event messages echo our own events; only the autostart
	// confirmation is interesting.
	for _, event := range message.Events {
		if _, ok := event.(ConversationAutostartEvent); ok {
			c.sendingAutostart = false
			c.customAttributes.OnSent()
			c.events.OnEvent(event)
		}
	}
}

// handleErrorLocked dispatches an error frame to the component it
// concerns. Session errors are terminal; message, attribute, and
// attachment errors stay scoped to their entity.
func (c *Client) handleErrorLocked(code ErrorCode, message string) {
	switch {
	case code == CodeSessionHasExpired || code == CodeSessionNotFound:
		c.transitionToErrorLocked(code, message)
	case code == CodeCustomAttributeSizeTooLarge:
		c.customAttributes.OnError()
		if c.sendingAutostart {
			// The oversized batch rode on the autostart event, so
			// there is no visible message to attach the error to.
			c.sendingAutostart = false
			c.events.OnEvent(ErrorEvent{
				Code:             code,
				Message:          message,
				CorrectiveAction: code.CorrectiveAction(),
			})
			return
		}
		c.store.OnMessageError(code, message)
		c.attachments.OnMessageError(code, message)
	case code == CodeMessageTooLong || code == CodeRequestRateTooHigh:
		c.customAttributes.OnMessageError()
		c.store.OnMessageError(code, message)
		c.attachments.OnMessageError(code, message)
	case code.IsResponseError():
		current := c.state.Current()
		if current.IsConnected() || current.IsReconnecting() || c.startingNewSession {
			c.handleConfigureErrorLocked(code, message)
			return
		}
		eventCode, eventMessage := code, message
		if clearConversationErrorPattern.MatchString(message) {
			eventCode = CodeClearConversationFailure
			eventMessage = errMessageFailedToClearConversation
		}
		c.events.OnEvent(ErrorEvent{
			Code:             eventCode,
			Message:          eventMessage,
			CorrectiveAction: eventCode.CorrectiveAction(),
		})
	case code == CodeWebsocketError:
		c.handleConnectionFailureLocked(code, message)
	default:
		c.logger.Warn("unhandled error frame", "code", int(code), "message", message)
	}
}

// handleConfigureErrorLocked handles a response error that belongs to
// session configuration. On an authenticated session a 401 triggers a
// bounded refresh-then-retry loop; everything else is terminal.
func (c *Client) handleConfigureErrorLocked(code ErrorCode, message string) {
	if c.authenticated && code.IsUnauthorized() && c.reconfigureAttempts < maxReconfigureAttempts {
		c.reconfigureAttempts++
		c.logger.Info("gateway rejected jwt, refreshing",
			"attempt", c.reconfigureAttempts)
		if c.state.Current().IsConnected() {
			startNew := c.startingNewSession
			c.refreshAndThen(func() func() {
				c.configureSessionLocked(startNew)
				return nil
			})
			return
		}
		// The socket is gone; refresh first, then reconnect.
		c.refreshAndThen(func() func() {
			return func() {
				if err := c.connect(true); err != nil {
					c.logger.Error("reconnect after refresh failed", "error", err)
				}
			}
		})
		return
	}
	c.transitionToErrorLocked(code, message)
}

// handleConnectionFailureLocked handles a dropped or rejected
// connection. A failure during a client-initiated close is the server
// never answering the handshake; the close is forced through first.
func (c *Client) handleConnectionFailureLocked(code ErrorCode, message string) {
	if current := c.state.Current(); current.IsClosing() {
		c.logger.Warn("force closing socket after failure during close",
			"code", int(code))
		c.onClosedLocked(current.Code, current.Reason)
	}
	if c.state.Current().IsInactive() {
		return
	}
	c.store.InvalidateConversationCache()
	switch code {
	case CodeWebsocketError:
		if c.reconnection.ShouldReconnect() {
			c.state.OnReconnect()
			authenticated := c.authenticated
			c.reconnection.Reconnect(func() {
				if err := c.connect(authenticated); err != nil {
					c.logger.Error("reconnect attempt rejected", "error", err)
				}
			})
			return
		}
		c.transitionToErrorLocked(CodeWebsocketError, errMessageFailedToReconnect)
	case CodeNetworkDisabled:
		c.transitionToErrorLocked(CodeNetworkDisabled, errMessageNetworkDisabled)
	case CodeWebsocketAccessDenied:
		c.transitionToErrorLocked(CodeWebsocketAccessDenied, message)
	default:
		c.transitionToErrorLocked(code, message)
	}
}
