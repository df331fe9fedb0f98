package controller

import (
	"errors"

	"careleads/models"
	"careleads/store"
	"careleads/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthController struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Users  *store.UserStore
}

func NewAuthController(db *gorm.DB, logger *logrus.Logger) *AuthController {
	activity := store.NewActivityStore(db, logger)
	return &AuthController{
		DB:     db,
		Logger: logger,
		Users:  store.NewUserStore(db, logger, activity),
	}
}

type registerInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Register creates an account that waits in the approval queue.
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input registerInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	user, err := ac.Users.Create(store.UserCreate{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
	}, input.Username, nil)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) || errors.Is(err, store.ErrEmailTaken) {
			return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
		}
		ac.Logger.WithError(err).Error("Registration failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to register", nil)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"message":  "Registration received. An administrator must approve your account before you can log in.",
	}))
}

type loginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates and issues a JWT. Unapproved accounts get a 403
// with a pending flag so the client can show the right message.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input loginInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	user, err := ac.Users.Authenticate(input.Username, input.Password)
	if err != nil {
		if errors.Is(err, store.ErrPendingApproval) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "Account is pending admin approval",
				"pending": true,
			})
		}
		ac.Logger.WithError(err).Error("Login failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", nil)
	}
	if user == nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid username or password", nil)
	}

	token, err := utils.GenerateJWTToken(user)
	if err != nil {
		ac.Logger.WithError(err).Error("Token generation failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
	}))
}

// Me returns the authenticated user's profile.
func (ac *AuthController) Me(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	}))
}

type changePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

func (ac *AuthController) ChangePassword(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input changePasswordInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	ok, err := ac.Users.ChangePassword(user.ID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		ac.Logger.WithError(err).Error("Password change failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to change password", nil)
	}
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Current password is incorrect", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Password updated"}))
}

type resetRequestInput struct {
	Username string `json:"username" validate:"required"`
}

// RequestPasswordReset flags an account for an admin reset. Always answers
// 200 so usernames cannot be probed.
func (ac *AuthController) RequestPasswordReset(c *fiber.Ctx) error {
	var input resetRequestInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if _, err := ac.Users.RequestPasswordReset(input.Username); err != nil {
		ac.Logger.WithError(err).Error("Password reset request failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to request reset", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "If the account exists, an administrator will reset its password.",
	}))
}

// --- Admin endpoints ---

func (ac *AuthController) ListPendingUsers(c *fiber.Ctx) error {
	users, err := ac.Users.ListPending()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list pending users", nil)
	}
	return c.JSON(utils.SuccessResponse(users))
}

func (ac *AuthController) ListUsers(c *fiber.Ctx) error {
	users, err := ac.Users.ListApproved()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list users", nil)
	}
	return c.JSON(utils.SuccessResponse(users))
}

func (ac *AuthController) ApproveUser(c *fiber.Ctx) error {
	admin := c.Locals("user").(*models.User)
	id := utils.ParseUint(c.Params("id"))

	user, err := ac.Users.Approve(id, admin.Username, &admin.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to approve user", nil)
	}
	if user == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	return c.JSON(utils.SuccessResponse(user))
}

func (ac *AuthController) RejectUser(c *fiber.Ctx) error {
	admin := c.Locals("user").(*models.User)
	id := utils.ParseUint(c.Params("id"))

	ok, err := ac.Users.Reject(id, admin.Username, &admin.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reject user", nil)
	}
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "User rejected and removed"}))
}

type roleInput struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

func (ac *AuthController) UpdateUserRole(c *fiber.Ctx) error {
	admin := c.Locals("user").(*models.User)
	id := utils.ParseUint(c.Params("id"))

	var input roleInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	user, err := ac.Users.UpdateRole(id, input.Role, admin.Username, &admin.ID)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRole) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update role", nil)
	}
	if user == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	return c.JSON(utils.SuccessResponse(user))
}

func (ac *AuthController) ListResetRequests(c *fiber.Ctx) error {
	users, err := ac.Users.ListResetRequests()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list reset requests", nil)
	}
	return c.JSON(utils.SuccessResponse(users))
}

type profileInput struct {
	Username string `json:"username" validate:"omitempty,min=3,max=50"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (ac *AuthController) UpdateUserProfile(c *fiber.Ctx) error {
	admin := c.Locals("user").(*models.User)
	id := utils.ParseUint(c.Params("id"))

	var input profileInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	user, err := ac.Users.UpdateProfile(id, input.Username, input.Email, admin.Username, &admin.ID)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) || errors.Is(err, store.ErrEmailTaken) {
			return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update user", nil)
	}
	if user == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	return c.JSON(utils.SuccessResponse(user))
}

type adminResetInput struct {
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (ac *AuthController) AdminResetPassword(c *fiber.Ctx) error {
	admin := c.Locals("user").(*models.User)
	id := utils.ParseUint(c.Params("id"))

	var input adminResetInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	user, err := ac.Users.AdminResetPassword(id, input.NewPassword, admin.Username, &admin.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reset password", nil)
	}
	if user == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Password reset"}))
}

func (ac *AuthController) DeleteUser(c *fiber.Ctx) error {
	admin := c.Locals("user").(*models.User)
	id := utils.ParseUint(c.Params("id"))

	if id == admin.ID {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot delete your own account", nil)
	}

	ok, err := ac.Users.Delete(id, admin.Username, &admin.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete user", nil)
	}
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "User deleted"}))
}
