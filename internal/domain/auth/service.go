package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"retailpos/internal/core/apperror"
	appctx "retailpos/internal/core/context"
	"retailpos/internal/core/id"
	"retailpos/internal/core/security"
	"retailpos/internal/core/tx"
	"retailpos/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts  int
	LockDuration      time.Duration
	PasswordMinLength int
	BcryptCost        int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:  5,
		LockDuration:      15 * time.Minute,
		PasswordMinLength: 8,
		BcryptCost:        bcrypt.DefaultCost,
	}
}

// Service provides authentication and user management.
type Service struct {
	userRepo    UserRepository
	sessionRepo SessionRepository
	directory   Directory
	txManager   tx.Manager
	jwtService  *JWTService
	config      ServiceConfig
	now         func() time.Time
}

// NewService creates a new auth service.
func NewService(
	userRepo UserRepository,
	sessionRepo SessionRepository,
	directory Directory,
	txManager tx.Manager,
	jwtService *JWTService,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		directory:   directory,
		txManager:   txManager,
		jwtService:  jwtService,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates user and opens a session.
func (s *Service) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(creds.Email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := user.CanLogin(); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(s.config.MaxLoginAttempts, s.config.LockDuration)
		if err := s.userRepo.Update(ctx, user); err != nil {
			logger.Warn(ctx, "failed to record failed login", "user_id", user.ID, "error", err)
		}
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	now := s.now()
	session := &Session{
		ID:        id.New(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.jwtService.TTL()),
		CreatedAt: now,
	}
	token, expiresAt, err := s.jwtService.GenerateAccessToken(user, session.ID, now)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.sessionRepo.Create(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		user.RecordSuccessfulLogin()
		return s.userRepo.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "user logged in",
		"user_id", user.ID,
		"role", user.Role)

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
		User:        user,
	}, nil
}

// Authenticate turns a bearer token into the request principal. The session
// must still be live; a super admin's selected tenant/location is read from it.
func (s *Service) Authenticate(ctx context.Context, token string) (*appctx.Principal, error) {
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid or expired token")
	}
	userID, err := id.Parse(claims.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid token subject")
	}
	sessionID, err := id.Parse(claims.SessionID)
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid token session")
	}

	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("session not found")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID || !session.IsValid(s.now()) {
		return nil, apperror.NewUnauthorized("session expired or revoked")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		return nil, apperror.NewUnauthorized("account is disabled")
	}

	p := &appctx.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		SessionID: session.ID.String(),
	}
	if user.Role == security.RoleSuperAdmin {
		if session.SelectedTenantID != nil {
			p.TenantID = *session.SelectedTenantID
		}
		if session.SelectedLocationID != nil {
			p.LocationID = *session.SelectedLocationID
		}
	} else {
		if user.TenantID != nil {
			p.TenantID = *user.TenantID
		}
		if user.LocationID != nil {
			p.LocationID = *user.LocationID
		}
	}
	return p, nil
}

// Logout revokes the caller's session.
func (s *Service) Logout(ctx context.Context) error {
	sessionID, err := currentSession(ctx)
	if err != nil {
		return err
	}
	return s.sessionRepo.Revoke(ctx, sessionID)
}

// Me returns the caller's profile.
func (s *Service) Me(ctx context.Context) (*Me, error) {
	p := appctx.GetPrincipal(ctx)
	if p == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	me := &Me{User: user}
	if user.Role == security.RoleSuperAdmin {
		if !id.IsNil(p.TenantID) {
			t := p.TenantID
			me.SelectedTenantID = &t
		}
		if !id.IsNil(p.LocationID) {
			l := p.LocationID
			me.SelectedLocationID = &l
		}
	}
	return me, nil
}

// SwitchContext selects the tenant (and optionally location) that a super
// admin's subsequent requests target. A nil tenant clears the selection.
func (s *Service) SwitchContext(ctx context.Context, tenantID, locationID *id.ID) (*Me, error) {
	scope, err := security.GetScope(ctx)
	if err != nil {
		return nil, err
	}
	if !scope.IsSuperAdmin() {
		return nil, apperror.NewForbidden("only a super admin can switch context")
	}
	sessionID, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}

	if tenantID == nil && locationID != nil {
		return nil, apperror.NewValidation("tenant is required when selecting a location").WithDetail("field", "tenant_id")
	}
	if tenantID != nil {
		if err := s.directory.TenantExists(ctx, *tenantID); err != nil {
			return nil, err
		}
	}
	if locationID != nil {
		owner, err := s.directory.LocationTenant(ctx, *locationID)
		if err != nil {
			return nil, err
		}
		if owner != *tenantID {
			return nil, apperror.NewValidation("location does not belong to tenant").WithDetail("field", "location_id")
		}
	}

	if err := s.sessionRepo.SetContext(ctx, sessionID, tenantID, locationID); err != nil {
		return nil, fmt.Errorf("set session context: %w", err)
	}

	logger.Info(ctx, "context switched", "tenant", tenantID, "location", locationID)

	user, err := s.userRepo.GetByID(ctx, scope.UserID)
	if err != nil {
		return nil, err
	}
	return &Me{User: user, SelectedTenantID: tenantID, SelectedLocationID: locationID}, nil
}

// CreateUser creates a user in the caller's scope. Store admins create store
// admins and location users of their own tenant; only a super admin may
// create another super admin.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	scope, err := security.GetScope(ctx)
	if err != nil {
		return nil, err
	}
	if err := scope.RequireRole(security.RoleStoreAdmin); err != nil {
		return nil, err
	}
	if _, err := security.ParseRole(string(req.Role)); err != nil {
		return nil, err
	}
	if req.Role == security.RoleSuperAdmin && !scope.IsSuperAdmin() {
		return nil, apperror.NewForbidden("only a super admin can create a super admin")
	}

	var tenantID, locationID *id.ID
	if req.Role.BindsTenant() {
		t, err := scope.ResolveTenant(req.TenantID)
		if err != nil {
			return nil, err
		}
		if err := s.directory.TenantExists(ctx, t); err != nil {
			return nil, err
		}
		tenantID = &t
	}
	if req.Role.BindsLocation() {
		if id.IsNil(req.LocationID) {
			return nil, apperror.NewValidation("location is required for this role").WithDetail("field", "location_id")
		}
		owner, err := s.directory.LocationTenant(ctx, req.LocationID)
		if err != nil {
			return nil, err
		}
		if owner != *tenantID {
			return nil, apperror.NewForbidden("location does not belong to tenant").
				WithDetail("location_id", req.LocationID)
		}
		l := req.LocationID
		locationID = &l
	}

	user, err := s.newUser(req.Email, req.Password, req.Name, req.Role, tenantID, locationID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Info(ctx, "user created", "new_user_id", user.ID, "new_user_role", user.Role)
	return user, nil
}

// CreateStoreAdmin creates the first admin of a freshly signed-up tenant.
// It joins the transaction in ctx.
func (s *Service) CreateStoreAdmin(ctx context.Context, tenantID id.ID, email, password, name string) (id.ID, error) {
	user, err := s.newUser(email, password, name, security.RoleStoreAdmin, &tenantID, nil)
	if err != nil {
		return id.Nil(), err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return id.Nil(), err
	}
	return user.ID, nil
}

// EnsureSuperAdmin creates the super admin account if the email is free.
// Used by the seeder.
func (s *Service) EnsureSuperAdmin(ctx context.Context, email, password string) (*User, bool, error) {
	existing, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, false, err
	}
	user, err := s.newUser(email, password, "Super Admin", security.RoleSuperAdmin, nil, nil)
	if err != nil {
		return nil, false, err
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// ListUsers lists the users of a tenant. Store admin or above.
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]User, int, error) {
	scope, err := security.GetScope(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := scope.RequireRole(security.RoleStoreAdmin); err != nil {
		return nil, 0, err
	}
	tenantID, err := scope.ResolveTenant(filter.TenantID)
	if err != nil {
		return nil, 0, err
	}
	filter.TenantID = tenantID
	if filter.Role != "" {
		if _, err := security.ParseRole(string(filter.Role)); err != nil {
			return nil, 0, err
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.userRepo.List(ctx, filter)
}

// GetUser returns a user the caller may manage. Store admin or above.
func (s *Service) GetUser(ctx context.Context, userID id.ID) (*User, error) {
	_, user, err := s.managedUser(ctx, userID)
	return user, err
}

// UpdateUser changes a user's email, name or location. A new location must
// belong to the user's tenant and only applies to location users.
func (s *Service) UpdateUser(ctx context.Context, userID id.ID, req UpdateUserRequest) (*User, error) {
	_, user, err := s.managedUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != user.Email {
			existing, err := s.userRepo.GetByEmail(ctx, email)
			switch {
			case err == nil && existing.ID != user.ID:
				return nil, apperror.NewDuplicate("user", "email", email)
			case err != nil && !apperror.IsNotFound(err):
				return nil, fmt.Errorf("check email: %w", err)
			}
			user.Email = email
		}
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.LocationID != nil {
		if !user.Role.BindsLocation() {
			return nil, apperror.NewValidation("only location users are bound to a location").
				WithDetail("field", "location_id")
		}
		owner, err := s.directory.LocationTenant(ctx, *req.LocationID)
		if err != nil {
			return nil, err
		}
		if user.TenantID == nil || owner != *user.TenantID {
			return nil, apperror.NewValidation("location does not belong to the user's tenant").
				WithDetail("field", "location_id")
		}
		l := *req.LocationID
		user.LocationID = &l
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	logger.Info(ctx, "user updated", "target_user_id", user.ID)
	return user, nil
}

// DeactivateUser disables an account and ends all of its sessions.
// Invoices and movements keep referencing the user, so it is not removed.
func (s *Service) DeactivateUser(ctx context.Context, userID id.ID) error {
	scope, user, err := s.managedUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.ID == scope.UserID {
		return apperror.NewValidation("you cannot deactivate your own account")
	}
	if !user.IsActive {
		return nil
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		user.IsActive = false
		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}
		if err := s.sessionRepo.RevokeAllForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "user deactivated", "target_user_id", user.ID)
	return nil
}

// managedUser loads a user the caller administers: a store admin only sees
// its own tenant, and only a super admin manages other super admins.
func (s *Service) managedUser(ctx context.Context, userID id.ID) (*security.Scope, *User, error) {
	scope, err := security.GetScope(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := scope.RequireRole(security.RoleStoreAdmin); err != nil {
		return nil, nil, err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user.TenantID == nil {
		if !scope.IsSuperAdmin() {
			return nil, nil, apperror.NewForbidden("user is outside of your scope")
		}
		return scope, user, nil
	}
	if _, err := scope.ResolveTenant(*user.TenantID); err != nil {
		return nil, nil, err
	}
	return scope, user, nil
}

// CleanupSessions removes sessions that ended more than retention ago.
func (s *Service) CleanupSessions(ctx context.Context, retention time.Duration) (int, error) {
	return s.sessionRepo.CleanupExpired(ctx, s.now().Add(-retention))
}

func (s *Service) newUser(email, password, name string, role security.Role, tenantID, locationID *id.ID) (*User, error) {
	if len(password) < s.config.PasswordMinLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength),
		).WithDetail("field", "password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := NewUser(email, string(hash), role)
	user.Name = strings.TrimSpace(name)
	user.TenantID = tenantID
	user.LocationID = locationID
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}

func currentSession(ctx context.Context) (id.ID, error) {
	p := appctx.GetPrincipal(ctx)
	if p == nil || p.SessionID == "" {
		return id.Nil(), apperror.NewUnauthorized("authentication required")
	}
	sessionID, err := id.Parse(p.SessionID)
	if err != nil {
		return id.Nil(), apperror.NewUnauthorized("invalid session")
	}
	return sessionID, nil
}
