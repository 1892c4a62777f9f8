package handlers

import (
	"time"

	"github.com/studycircle/studycircle-api/internal/domain/entity"
)

// AccountView is the JSON shape every handler returns for an account. The
// password hash and verification token never leave the server.
type AccountView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Nickname      string     `json:"nickname"`
	EmailVerified bool       `json:"email_verified"`
	JoinedAt      *time.Time `json:"joined_at,omitempty"`

	Bio        string `json:"bio,omitempty"`
	URL        string `json:"url,omitempty"`
	Occupation string `json:"occupation,omitempty"`
	Location   string `json:"location,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`

	StudyCreatedByEmail     bool `json:"study_created_by_email"`
	StudyCreatedByWeb       bool `json:"study_created_by_web"`
	EnrollmentResultByEmail bool `json:"enrollment_result_by_email"`
	EnrollmentResultByWeb   bool `json:"enrollment_result_by_web"`
	StudyUpdatedByEmail     bool `json:"study_updated_by_email"`
	StudyUpdatedByWeb       bool `json:"study_updated_by_web"`

	CreatedAt time.Time `json:"created_at"`
}

func toView(a *entity.Account) AccountView {
	return AccountView{
		ID:                      a.ID,
		Email:                   a.Email,
		Nickname:                a.Nickname,
		EmailVerified:           a.EmailVerified,
		JoinedAt:                a.JoinedAt,
		Bio:                     a.Bio,
		URL:                     a.URL,
		Occupation:              a.Occupation,
		Location:                a.Location,
		AvatarURL:               a.AvatarURL,
		StudyCreatedByEmail:     a.StudyCreatedByEmail,
		StudyCreatedByWeb:       a.StudyCreatedByWeb,
		EnrollmentResultByEmail: a.EnrollmentResultByEmail,
		EnrollmentResultByWeb:   a.EnrollmentResultByWeb,
		StudyUpdatedByEmail:     a.StudyUpdatedByEmail,
		StudyUpdatedByWeb:       a.StudyUpdatedByWeb,
		CreatedAt:               a.CreatedAt,
	}
}
