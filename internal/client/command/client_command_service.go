package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vivesbank/backend/internal/client/repository"
	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

var logger = log.With().Str("pkg", "client.command").Logger()

type ClientWriter interface {
	Create(ctx context.Context, c *models.Client) error
	GetByGUID(ctx context.Context, guid string) (*models.Client, error)
	GetByUserGUID(ctx context.Context, userGUID string) (*models.Client, error)
	Update(ctx context.Context, c *models.Client) error
	SoftDelete(ctx context.Context, guid string) error
	Forget(ctx context.Context, c *models.Client) (*repository.Forgotten, error)
}

type ClientViews interface {
	GetByGUID(ctx context.Context, guid string) (*models.ClientView, error)
	InvalidateClient(ctx context.Context, guid, userGUID string)
}

type UserGetter interface {
	GetByGUID(ctx context.Context, guid string) (*models.UserView, error)
}

type PhotoStore interface {
	Save(prefix, originalName string, r io.Reader) (string, error)
	Remove(name string) error
}

type AccountInvalidator interface {
	InvalidateAccount(ctx context.Context, guid, iban string)
}

type CardInvalidator interface {
	InvalidateCardView(ctx context.Context, guids ...string)
}

type UserInvalidator interface {
	InvalidateUserView(ctx context.Context, guid string)
}

// ClientDeps groups the collaborators of ClientCommandService. The
// invalidators are only used when a client is forgotten.
type ClientDeps struct {
	Clients  ClientWriter
	Views    ClientViews
	Users    UserGetter
	Photos   PhotoStore
	Accounts AccountInvalidator
	Cards    CardInvalidator
	UserView UserInvalidator
}

type ClientCommandService struct {
	ClientDeps
}

func NewClientCommandService(deps ClientDeps) *ClientCommandService {
	return &ClientCommandService{ClientDeps: deps}
}

func (s *ClientCommandService) CreateClient(ctx context.Context, cmd cqrs.CreateClientCommand) (*models.ClientView, error) {
	user, err := s.Users.GetByGUID(ctx, cmd.UserGUID)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted {
		return nil, apperrors.NotFound("user", cmd.UserGUID)
	}
	_, err = s.Clients.GetByUserGUID(ctx, cmd.UserGUID)
	switch {
	case err == nil:
		return nil, apperrors.Conflict("client", "user", cmd.UserGUID)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	now := time.Now().UTC()
	c := &models.Client{
		GUID:      utils.GenerateID(utils.PrefixClient),
		DNI:       strings.ToUpper(cmd.DNI),
		Name:      cmd.Name,
		Surname:   cmd.Surname,
		Email:     strings.ToLower(cmd.Email),
		Phone:     cmd.Phone,
		Address:   cmd.Address,
		UserGUID:  cmd.UserGUID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Clients.Create(ctx, c); err != nil {
		return nil, err
	}
	logger.Info().Str("client", c.GUID).Str("user", c.UserGUID).Msg("client created")
	return s.reload(ctx, c)
}

func (s *ClientCommandService) UpdateClient(ctx context.Context, cmd cqrs.UpdateClientCommand) (*models.ClientView, error) {
	c, err := s.resolve(ctx, cmd.GUID, cmd.UserGUID)
	if err != nil {
		return nil, err
	}
	if cmd.Name != "" {
		c.Name = cmd.Name
	}
	if cmd.Surname != "" {
		c.Surname = cmd.Surname
	}
	if cmd.Email != "" {
		c.Email = strings.ToLower(cmd.Email)
	}
	if cmd.Phone != "" {
		c.Phone = cmd.Phone
	}
	if cmd.Address != nil {
		c.Address = *cmd.Address
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.Clients.Update(ctx, c); err != nil {
		return nil, err
	}
	return s.reload(ctx, c)
}

func (s *ClientCommandService) DeleteClient(ctx context.Context, cmd cqrs.DeleteClientCommand) error {
	c, err := s.Clients.GetByGUID(ctx, cmd.GUID)
	if err != nil {
		return err
	}
	if err := s.Clients.SoftDelete(ctx, c.GUID); err != nil {
		return err
	}
	s.Views.InvalidateClient(ctx, c.GUID, c.UserGUID)
	logger.Info().Str("client", c.GUID).Msg("client deleted")
	return nil
}

// ForgetClient erases the caller's client, accounts, cards, photos and user.
func (s *ClientCommandService) ForgetClient(ctx context.Context, cmd cqrs.ForgetClientCommand) error {
	c, err := s.Clients.GetByUserGUID(ctx, cmd.UserGUID)
	if err != nil {
		return err
	}
	gone, err := s.Clients.Forget(ctx, c)
	if err != nil {
		return err
	}

	for _, photo := range []string{c.ProfilePhoto, c.DNIPhoto} {
		if err := s.Photos.Remove(photo); err != nil {
			logger.Warn().Err(err).Str("file", photo).Msg("failed to remove photo of forgotten client")
		}
	}
	s.Views.InvalidateClient(ctx, gone.ClientGUID, gone.UserGUID)
	for i, guid := range gone.AccountGUIDs {
		s.Accounts.InvalidateAccount(ctx, guid, gone.IBANs[i])
	}
	s.Cards.InvalidateCardView(ctx, gone.CardGUIDs...)
	s.UserView.InvalidateUserView(ctx, gone.UserGUID)

	logger.Info().Str("client", gone.ClientGUID).Int("accounts", len(gone.AccountGUIDs)).Msg("client forgotten")
	return nil
}

// UploadPhoto stores a new profile or DNI photo for the caller and removes
// the one it replaces.
func (s *ClientCommandService) UploadPhoto(ctx context.Context, cmd cqrs.UploadPhotoCommand) (*models.ClientView, error) {
	c, err := s.Clients.GetByUserGUID(ctx, cmd.UserGUID)
	if err != nil {
		return nil, err
	}
	name, err := s.Photos.Save(string(cmd.Kind), cmd.Filename, cmd.Content)
	if err != nil {
		return nil, err
	}

	var previous string
	switch cmd.Kind {
	case cqrs.PhotoProfile:
		previous, c.ProfilePhoto = c.ProfilePhoto, name
	case cqrs.PhotoDNI:
		previous, c.DNIPhoto = c.DNIPhoto, name
	default:
		s.Photos.Remove(name)
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown photo kind %q", cmd.Kind))
	}
	c.UpdatedAt = time.Now().UTC()
	if err := s.Clients.Update(ctx, c); err != nil {
		s.Photos.Remove(name)
		return nil, err
	}
	if err := s.Photos.Remove(previous); err != nil {
		logger.Warn().Err(err).Str("file", previous).Msg("failed to remove replaced photo")
	}
	return s.reload(ctx, c)
}

func (s *ClientCommandService) resolve(ctx context.Context, guid, userGUID string) (*models.Client, error) {
	if guid != "" {
		return s.Clients.GetByGUID(ctx, guid)
	}
	return s.Clients.GetByUserGUID(ctx, userGUID)
}

func (s *ClientCommandService) reload(ctx context.Context, c *models.Client) (*models.ClientView, error) {
	s.Views.InvalidateClient(ctx, c.GUID, c.UserGUID)
	view, err := s.Views.GetByGUID(ctx, c.GUID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload client: %w", err)
	}
	return view, nil
}
