package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/abhisek/anamnesis/internal/auth"
	"github.com/abhisek/anamnesis/internal/session"
)

const (
	defaultTopUsers = 10
	maxTopUsers     = 100
	maxListedChats  = 100
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createChatRequest struct {
	Difficulty string `json:"difficulty"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type endGameRequest struct {
	Answer string `json:"answer"`
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return nil
}

func chatID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		// Unparsable ids name no chat.
		return 0, session.ErrNotFound
	}
	return id, nil
}

func actor(c echo.Context) int64 {
	return auth.UserIDFromContext(c.Request().Context())
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := s.accounts.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newUserView(u))
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := s.accounts.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return s.issue(c, u.ID, u.Username)
}

func (s *Server) refresh(c echo.Context) error {
	ctx := c.Request().Context()
	return s.issue(c, auth.UserIDFromContext(ctx), auth.UsernameFromContext(ctx))
}

func (s *Server) issue(c echo.Context, userID int64, username string) error {
	tok, err := s.issuer.Issue(userID, username)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenView{
		Access:    tok,
		TokenType: "Bearer",
		ExpiresIn: int64(s.issuer.TTL().Seconds()),
	})
}

func (s *Server) profile(c echo.Context) error {
	u, err := s.accounts.Profile(c.Request().Context(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserView(u))
}

func (s *Server) topUsers(c echo.Context) error {
	n := defaultTopUsers
	if raw := c.QueryParam("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "n must be a positive integer")
		}
		n = min(v, maxTopUsers)
	}
	top, err := s.accounts.TopUsers(c.Request().Context(), n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, top)
}

func (s *Server) listChats(c echo.Context) error {
	chats, err := s.games.List(c.Request().Context(), actor(c), maxListedChats)
	if err != nil {
		return err
	}
	out := make([]chatView, len(chats))
	for i := range chats {
		out[i] = newChatView(&chats[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) createChat(c echo.Context) error {
	var req createChatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	chat, err := s.games.Create(c.Request().Context(), actor(c), req.Difficulty)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newChatView(chat))
}

func (s *Server) getChat(c echo.Context) error {
	id, err := chatID(c)
	if err != nil {
		return err
	}
	chat, err := s.games.Get(c.Request().Context(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newChatView(chat))
}

func (s *Server) deleteChat(c echo.Context) error {
	id, err := chatID(c)
	if err != nil {
		return err
	}
	if err := s.games.Delete(c.Request().Context(), actor(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) history(c echo.Context) error {
	id, err := chatID(c)
	if err != nil {
		return err
	}
	msgs, err := s.games.History(c.Request().Context(), actor(c), id)
	if err != nil {
		return err
	}
	out := make([]messageView, len(msgs))
	for i := range msgs {
		out[i] = newMessageView(&msgs[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) sendMessage(c echo.Context) error {
	id, err := chatID(c)
	if err != nil {
		return err
	}
	var req messageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	reply, err := s.games.SendMessage(c.Request().Context(), actor(c), id, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newMessageView(reply))
}

func (s *Server) endGame(c echo.Context) error {
	id, err := chatID(c)
	if err != nil {
		return err
	}
	var req endGameRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.games.EndGame(c.Request().Context(), actor(c), id, req.Answer)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
