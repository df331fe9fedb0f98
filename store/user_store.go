package store

import (
	"errors"
	"fmt"
	"time"

	"careleads/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrPendingApproval means the credentials were correct but an admin
	// has not approved the account yet. Distinct from invalid credentials.
	ErrPendingApproval = errors.New("account pending admin approval")
	// ErrUsernameTaken rejects a duplicate username.
	ErrUsernameTaken = errors.New("username is already taken")
	// ErrEmailTaken rejects a duplicate email address.
	ErrEmailTaken = errors.New("email is already registered")
	// ErrInvalidRole rejects roles other than user and admin.
	ErrInvalidRole = errors.New("role must be \"user\" or \"admin\"")
)

// UserStore manages accounts and the admin approval workflow.
type UserStore struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	Activity *ActivityStore
	Now      func() time.Time
}

func NewUserStore(db *gorm.DB, logger *logrus.Logger, activity *ActivityStore) *UserStore {
	return &UserStore{
		DB:       db,
		Logger:   logger,
		Activity: activity,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// HashPassword hashes with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func verifyPassword(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// UserCreate carries the fields for a new account.
type UserCreate struct {
	Username string
	Email    string
	Password string
	Role     string
	// Admin-created accounts skip the approval queue
	AutoApprove bool
}

// Create registers a new account. Self-registered users start unapproved
// and cannot log in until an admin approves them.
func (s *UserStore) Create(in UserCreate, performer string, performerID *uint) (*models.User, error) {
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, ErrInvalidRole
	}

	var existing models.User
	if err := s.DB.Where("username = ?", in.Username).First(&existing).Error; err == nil {
		return nil, ErrUsernameTaken
	}
	if err := s.DB.Where("email = ?", in.Email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hashed,
		Role:           role,
		IsApproved:     in.AutoApprove,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      performerID,
			Username:    performer,
			ActionType:  models.ActionUserCreated,
			EntityType:  models.EntityUser,
			EntityID:    &user.ID,
			EntityName:  user.Username,
			Description: fmt.Sprintf("User '%s' created", user.Username),
			NewValue: map[string]interface{}{
				"username":    user.Username,
				"email":       user.Email,
				"role":        user.Role,
				"is_approved": user.IsApproved,
			},
			Keywords: "user,create",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Authenticate checks credentials. Three outcomes: the user on success,
// ErrPendingApproval when the password is right but the account awaits
// approval, and (nil, nil) for unknown username or wrong password.
func (s *UserStore) Authenticate(username, password string) (*models.User, error) {
	user, err := s.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	if !verifyPassword(user.HashedPassword, password) {
		return nil, nil
	}
	if !user.IsApproved {
		return nil, ErrPendingApproval
	}
	return user, nil
}

// GetByUsername returns a user or nil when no such account exists.
func (s *UserStore) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// GetByID returns a user or nil when no such account exists.
func (s *UserStore) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// ListPending returns accounts awaiting approval.
func (s *UserStore) ListPending() ([]models.User, error) {
	var users []models.User
	if err := s.DB.Where("is_approved = ?", false).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending users: %w", err)
	}
	return users, nil
}

// ListApproved returns approved accounts ordered by username.
func (s *UserStore) ListApproved() ([]models.User, error) {
	var users []models.User
	err := s.DB.Where("is_approved = ?", true).Order("username").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Approve clears a user to log in.
func (s *UserStore) Approve(id uint, admin string, adminID *uint) (*models.User, error) {
	user, err := s.GetByID(id)
	if err != nil || user == nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("is_approved", true).Error; err != nil {
			return fmt.Errorf("failed to approve user: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      adminID,
			Username:    admin,
			ActionType:  models.ActionUserApproved,
			EntityType:  models.EntityUser,
			EntityID:    &user.ID,
			EntityName:  user.Username,
			Description: fmt.Sprintf("User '%s' approved", user.Username),
			OldValue:    map[string]interface{}{"is_approved": false},
			NewValue:    map[string]interface{}{"is_approved": true},
			Keywords:    "user,approve",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	user.IsApproved = true
	return user, nil
}

// Reject deletes a pending account.
func (s *UserStore) Reject(id uint, admin string, adminID *uint) (bool, error) {
	user, err := s.GetByID(id)
	if err != nil || user == nil {
		return false, err
	}

	username := user.Username
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Delete(&models.User{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      adminID,
			Username:    admin,
			ActionType:  models.ActionUserRejected,
			EntityType:  models.EntityUser,
			EntityID:    &id,
			EntityName:  username,
			Description: fmt.Sprintf("User '%s' rejected and deleted", username),
			Keywords:    "user,reject",
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateRole switches a user between the user and admin roles.
func (s *UserStore) UpdateRole(id uint, newRole, admin string, adminID *uint) (*models.User, error) {
	if newRole != models.RoleUser && newRole != models.RoleAdmin {
		return nil, ErrInvalidRole
	}
	user, err := s.GetByID(id)
	if err != nil || user == nil {
		return nil, err
	}

	oldRole := user.Role
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("role", newRole).Error; err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      adminID,
			Username:    admin,
			ActionType:  models.ActionUserRoleUpdated,
			EntityType:  models.EntityUser,
			EntityID:    &user.ID,
			EntityName:  user.Username,
			Description: fmt.Sprintf("Role updated from '%s' to '%s' for '%s'", oldRole, newRole, user.Username),
			OldValue:    map[string]interface{}{"role": oldRole},
			NewValue:    map[string]interface{}{"role": newRole},
			Keywords:    "user,role,update",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	user.Role = newRole
	return user, nil
}

// UpdateProfile changes a user's username and/or email. Empty arguments
// leave the field alone. Duplicate checks apply against other accounts.
func (s *UserStore) UpdateProfile(id uint, newUsername, newEmail, admin string, adminID *uint) (*models.User, error) {
	user, err := s.GetByID(id)
	if err != nil || user == nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	oldVals := map[string]interface{}{}
	newVals := map[string]interface{}{}

	if newUsername != "" && newUsername != user.Username {
		var existing models.User
		if err := s.DB.Where("username = ? AND id <> ?", newUsername, id).First(&existing).Error; err == nil {
			return nil, ErrUsernameTaken
		}
		updates["username"] = newUsername
		oldVals["username"] = user.Username
		newVals["username"] = newUsername
	}
	if newEmail != "" && newEmail != user.Email {
		var existing models.User
		if err := s.DB.Where("email = ? AND id <> ?", newEmail, id).First(&existing).Error; err == nil {
			return nil, ErrEmailTaken
		}
		updates["email"] = newEmail
		oldVals["email"] = user.Email
		newVals["email"] = newEmail
	}
	if len(updates) == 0 {
		return user, nil
	}

	oldUsername := user.Username
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      adminID,
			Username:    admin,
			ActionType:  models.ActionUserUpdated,
			EntityType:  models.EntityUser,
			EntityID:    &user.ID,
			EntityName:  oldUsername,
			Description: fmt.Sprintf("Profile updated for '%s'", oldUsername),
			OldValue:    oldVals,
			NewValue:    newVals,
			Keywords:    "user,update",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if v, ok := updates["username"]; ok {
		user.Username = v.(string)
	}
	if v, ok := updates["email"]; ok {
		user.Email = v.(string)
	}
	return user, nil
}

// ChangePassword sets a new password after verifying the current one.
func (s *UserStore) ChangePassword(id uint, currentPassword, newPassword string) (bool, error) {
	user, err := s.GetByID(id)
	if err != nil || user == nil {
		return false, err
	}
	if !verifyPassword(user.HashedPassword, currentPassword) {
		return false, nil
	}

	hashed, err := HashPassword(newPassword)
	if err != nil {
		return false, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("hashed_password", hashed).Error; err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      &user.ID,
			Username:    user.Username,
			ActionType:  models.ActionPasswordChanged,
			EntityType:  models.EntityUser,
			EntityID:    &user.ID,
			EntityName:  user.Username,
			Description: "Password updated",
			Keywords:    "user,update,security",
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// RequestPasswordReset flags the account for the admin reset queue.
func (s *UserStore) RequestPasswordReset(username string) (*models.User, error) {
	user, err := s.GetByUsername(username)
	if err != nil || user == nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password_reset_requested", true).Error; err != nil {
			return fmt.Errorf("failed to flag password reset: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      &user.ID,
			Username:    user.Username,
			ActionType:  models.ActionPasswordResetRequested,
			EntityType:  models.EntityUser,
			EntityID:    &user.ID,
			EntityName:  user.Username,
			Description: fmt.Sprintf("Password reset requested for '%s'", user.Username),
			Keywords:    "user,security,reset",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	user.PasswordResetRequested = true
	return user, nil
}

// ListResetRequests returns accounts waiting for an admin password reset.
func (s *UserStore) ListResetRequests() ([]models.User, error) {
	var users []models.User
	err := s.DB.Where("password_reset_requested = ?", true).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reset requests: %w", err)
	}
	return users, nil
}

// AdminResetPassword sets a new password and clears the reset flag.
func (s *UserStore) AdminResetPassword(id uint, newPassword, admin string, adminID *uint) (*models.User, error) {
	user, err := s.GetByID(id)
	if err != nil || user == nil {
		return nil, err
	}

	hashed, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(user).Updates(map[string]interface{}{
			"hashed_password":          hashed,
			"password_reset_requested": false,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}
		_, err = s.Activity.Record(tx, ActivityRecord{
			UserID:      adminID,
			Username:    admin,
			ActionType:  models.ActionPasswordResetCompleted,
			EntityType:  models.EntityUser,
			EntityID:    &user.ID,
			EntityName:  user.Username,
			Description: fmt.Sprintf("Password reset for '%s' by admin", user.Username),
			Keywords:    "user,security,reset",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	user.PasswordResetRequested = false
	return user, nil
}

// Delete removes an account entirely.
func (s *UserStore) Delete(id uint, admin string, adminID *uint) (bool, error) {
	user, err := s.GetByID(id)
	if err != nil || user == nil {
		return false, err
	}

	username := user.Username
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Delete(&models.User{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		_, err := s.Activity.Record(tx, ActivityRecord{
			UserID:      adminID,
			Username:    admin,
			ActionType:  models.ActionUserDeleted,
			EntityType:  models.EntityUser,
			EntityID:    &id,
			EntityName:  username,
			Description: fmt.Sprintf("User '%s' deleted by admin", username),
			Keywords:    "user,delete,admin",
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
