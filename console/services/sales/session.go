package main

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrSessionExpired = errors.New("session expired")
)

// Session guarda o bearer token do operador. O login acontece fora do console;
// aqui o token só é injetado nas requisições e invalidado quando expira ou a API responde 401.
type Session struct {
	mu     sync.RWMutex
	token  string
	now    func() time.Time
	logger *zap.Logger
}

// NewSession cria uma nova sessão com o token inicial (pode ser vazio)
func NewSession(token string, logger *zap.Logger) *Session {
	return &Session{
		token:  token,
		now:    time.Now,
		logger: logger,
	}
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token retorna o token atual. Vazio significa requisição sem Authorization.
// Tokens JWT com exp no passado invalidam a sessão; tokens opacos passam direto.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return "", nil
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return token, nil
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, nil
	}
	if !exp.Time.After(s.now()) {
		s.InvalidateToken(token, "token expired")
		return "", ErrSessionExpired
	}
	return token, nil
}

// Invalidate descarta o token atual
func (s *Session) Invalidate(reason string) {
	s.mu.Lock()
	hadToken := s.token != ""
	s.token = ""
	s.mu.Unlock()

	if hadToken {
		s.logger.Warn("🔒 session invalidated", zap.String("reason", reason))
	}
}

// InvalidateToken descarta token apenas se ele ainda for o token atual.
// Um SetToken feito enquanto a requisição com o token antigo estava em andamento é preservado.
func (s *Session) InvalidateToken(token, reason string) {
	if token == "" {
		return
	}

	s.mu.Lock()
	current := s.token == token
	if current {
		s.token = ""
	}
	s.mu.Unlock()

	if current {
		s.logger.Warn("🔒 session invalidated", zap.String("reason", reason))
	}
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}
