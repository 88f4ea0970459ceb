package user

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/nutribuddy-web/internal/api"
	"github.com/wichananm65/nutribuddy-web/internal/session"
	"github.com/wichananm65/nutribuddy-web/internal/web"
)

const (
	msgLoginFailed     = "Login failed. Please check your credentials."
	msgLoginRequired   = "Username and password are required."
	msgSignupFailed    = "Signup failed. Please try again."
	msgRegistered      = "Account created. Please log in."
	msgUpdateFailed    = "Update failed. Please try again."
	msgUpdated         = "Profile updated successfully!"
	msgPasswordFailed  = "Password change failed. Please try again."
	msgPasswordChanged = "Password changed successfully."
	msgInvalidForm     = "Please correct the highlighted fields."
)

type Handler struct {
	service  *Service
	sessions *session.Service
}

func NewHandler(service *Service, sessions *session.Service) *Handler {
	return &Handler{service: service, sessions: sessions}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/", h.loginPage)
	app.Post("/", h.login)
	app.Get("/signup", h.signupPage)
	app.Post("/signup", h.signup)
	app.Post("/logout", h.logout)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App, guard fiber.Handler) {
	app.Get("/update-settings", guard, h.settingsPage)
	app.Post("/update-settings", guard, h.updateSettings)
	app.Post("/update-settings/password", guard, h.changePassword)
}

func (h *Handler) loginPage(c *fiber.Ctx) error {
	if h.sessions.IsAuthenticated(c.UserContext(), session.ID(c)) {
		return c.Redirect("/dashboard", fiber.StatusFound)
	}
	data := web.Page("Login", false)
	data["Username"] = ""
	if c.Query("registered") != "" {
		data["Success"] = msgRegistered
	}
	return web.Render(c, fiber.StatusOK, "login", data)
}

func (h *Handler) login(c *fiber.Ctx) error {
	form := new(LoginForm)
	if err := c.BodyParser(form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	data := web.Page("Login", false)
	data["Username"] = form.Username
	if form.Username == "" || form.Password == "" {
		data["Error"] = msgLoginRequired
		return web.Render(c, fiber.StatusUnprocessableEntity, "login", data)
	}

	if err := h.service.Login(c.UserContext(), session.ID(c), *form); err != nil {
		data["Error"] = msgLoginFailed
		return web.Render(c, fiber.StatusUnauthorized, "login", data)
	}
	return c.Redirect("/dashboard", fiber.StatusFound)
}

func (h *Handler) signupPage(c *fiber.Ctx) error {
	data := web.Page("Sign Up", h.sessions.IsAuthenticated(c.UserContext(), session.ID(c)))
	data["Form"] = SignupForm{}
	return web.Render(c, fiber.StatusOK, "signup", data)
}

func (h *Handler) signup(c *fiber.Ctx) error {
	form := new(SignupForm)
	if err := c.BodyParser(form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	_, err := h.service.Signup(c.UserContext(), *form)
	if err == nil {
		return c.Redirect("/?registered=1", fiber.StatusFound)
	}

	form.Password = ""
	data := web.Page("Sign Up", false)
	data["Form"] = form
	if fe, ok := AsFieldErrors(err); ok {
		data["Errors"] = fe
		data["Error"] = msgInvalidForm
		return web.Render(c, fiber.StatusUnprocessableEntity, "signup", data)
	}
	data["Error"] = backendMessage(err, msgSignupFailed)
	return web.Render(c, failureStatus(err), "signup", data)
}

func (h *Handler) settingsPage(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c.UserContext(), session.ID(c))
	if err != nil {
		return err
	}
	return web.Render(c, fiber.StatusOK, "settings", settingsData(sess, settingsForm(sess)))
}

func (h *Handler) updateSettings(c *fiber.Ctx) error {
	form := new(SettingsForm)
	if err := c.BodyParser(form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	sid := session.ID(c)

	updated, err := h.service.UpdateSettings(c.UserContext(), sid, *form)
	if err == nil {
		data := settingsData(updated, *form)
		data["Success"] = msgUpdated
		return web.Render(c, fiber.StatusOK, "settings", data)
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return c.Redirect("/", fiber.StatusFound)
	}

	sess, getErr := h.sessions.Get(c.UserContext(), sid)
	if getErr != nil {
		return getErr
	}
	data := settingsData(sess, *form)
	if fe, ok := AsFieldErrors(err); ok {
		data["Errors"] = fe
		data["Error"] = msgInvalidForm
		return web.Render(c, fiber.StatusUnprocessableEntity, "settings", data)
	}
	data["Error"] = backendMessage(err, msgUpdateFailed)
	return web.Render(c, failureStatus(err), "settings", data)
}

func (h *Handler) changePassword(c *fiber.Ctx) error {
	form := new(PasswordForm)
	if err := c.BodyParser(form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	sid := session.ID(c)

	err := h.service.ChangePassword(c.UserContext(), sid, *form)
	if errors.Is(err, ErrNotAuthenticated) {
		return c.Redirect("/", fiber.StatusFound)
	}
	sess, getErr := h.sessions.Get(c.UserContext(), sid)
	if getErr != nil {
		return getErr
	}
	data := settingsData(sess, settingsForm(sess))
	switch fe, ok := AsFieldErrors(err); {
	case err == nil:
		data["Success"] = msgPasswordChanged
		return web.Render(c, fiber.StatusOK, "settings", data)
	case ok:
		data["Errors"] = fe
		data["Error"] = msgInvalidForm
		return web.Render(c, fiber.StatusUnprocessableEntity, "settings", data)
	default:
		data["Error"] = backendMessage(err, msgPasswordFailed)
		return web.Render(c, failureStatus(err), "settings", data)
	}
}

func (h *Handler) logout(c *fiber.Ctx) error {
	if err := h.service.Logout(c.UserContext(), session.ID(c)); err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	return c.Redirect("/", fiber.StatusFound)
}

func settingsData(sess session.Session, form SettingsForm) fiber.Map {
	data := web.Page("Update Settings", true)
	data["Form"] = form
	data["BMI"], data["HasBMI"] = sess.BMI()
	return data
}

func settingsForm(sess session.Session) SettingsForm {
	var form SettingsForm
	if sess.Height != nil {
		form.Height = strconv.FormatFloat(*sess.Height, 'f', -1, 64)
	}
	if sess.Weight != nil {
		form.Weight = strconv.FormatFloat(*sess.Weight, 'f', -1, 64)
	}
	return form
}

// backendMessage prefers the backend's own explanation of a rejected request.
func backendMessage(err error, fallback string) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

func failureStatus(err error) int {
	code := api.StatusCode(err)
	if code >= 400 && code < 500 {
		return code
	}
	return fiber.StatusBadGateway
}
