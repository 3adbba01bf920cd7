package validate

import (
	"strings"

	"github.com/erazemk/najdeno/internal/model"
)

type lostForm struct {
	Item      string `label:"Item Name" validate:"required,min=2"`
	Date      string `label:"Date Lost" validate:"required,day,notfuture"`
	Time      string `label:"Time Lost" validate:"required,clock"`
	Location  string `label:"Location" validate:"required,min=3"`
	Brand     string `label:"Brand" validate:"omitempty,brand"`
	Primary   string `label:"Primary Color" validate:"omitempty,color"`
	Secondary string `label:"Secondary Color" validate:"omitempty,color"`
	ImageURL  string `label:"Image URL" validate:"omitempty,weburl"`
	First     string `label:"First Name" validate:"required,min=2,lostname"`
	Last      string `label:"Last Name" validate:"required,min=2,lostname"`
	Phone     string `label:"Phone Number" validate:"required,lostphone"`
	Email     string `label:"Email" validate:"required,mail"`
}

// LostReport checks a public lost item submission.
func (val *Validator) LostReport(r *model.LostReport) error {
	return val.check(lostForm{
		Item:      trim(r.Item),
		Date:      trim(r.Date),
		Time:      trim(r.Time),
		Location:  trim(r.Location),
		Brand:     trim(r.Brand),
		Primary:   trim(r.Primary),
		Secondary: trim(r.Secondary),
		ImageURL:  trim(r.ImageURL),
		First:     trim(r.First),
		Last:      trim(r.Last),
		Phone:     strings.ReplaceAll(trim(r.Phone), " ", ""),
		Email:     trim(r.Email),
	}, nil)
}

type foundForm struct {
	Name              string `label:"Item Name" validate:"required,itemname"`
	Location          string `label:"Location" validate:"required,place"`
	DateFound         string `label:"Date Found" validate:"required,day,notfuture"`
	TimeFound         string `label:"Time Found" validate:"required,clock"`
	Brand             string `label:"Brand" validate:"required,brand"`
	PrimaryColor      string `label:"Primary Color" validate:"required,color"`
	SecondaryColor    string `label:"Secondary Color" validate:"omitempty,color"`
	Description       string `label:"Description" validate:"required"`
	Image             string `label:"Image URL" validate:"omitempty,weburl"`
	ReporterFirstName string `label:"Reporter First Name" validate:"required,personname"`
	ReporterLastName  string `label:"Reporter Last Name" validate:"required,personname"`
	ReporterPhone     string `label:"Reporter Phone" validate:"required,phone"`
	ReporterEmail     string `label:"Reporter Email" validate:"required,mail"`
	Status            string `label:"Status" validate:"omitempty,oneof=Unclaimed Validated Claimed"`
	OwnerName         string `label:"Claimer Name" validate:"omitempty,personname"`
	OwnerEmail        string `label:"Claimer Email" validate:"omitempty,mail"`
}

// FoundItem checks a found item record before it is created or saved.
func (val *Validator) FoundItem(f *model.FoundItem) error {
	return val.check(foundForm{
		Name:              trim(f.Name),
		Location:          trim(f.Location),
		DateFound:         trim(f.DateFound),
		TimeFound:         trim(f.TimeFound),
		Brand:             trim(f.Brand),
		PrimaryColor:      trim(f.PrimaryColor),
		SecondaryColor:    trim(f.SecondaryColor),
		Description:       trim(f.Description),
		Image:             trim(f.Image),
		ReporterFirstName: trim(f.ReporterFirstName),
		ReporterLastName:  trim(f.ReporterLastName),
		ReporterPhone:     trim(f.ReporterPhone),
		ReporterEmail:     trim(f.ReporterEmail),
		Status:            trim(f.Status),
		OwnerName:         trim(f.OwnerName),
		OwnerEmail:        trim(f.OwnerEmail),
	}, nil)
}

type accountForm struct {
	Name        string `label:"Name" validate:"required"`
	Email       string `label:"Email" validate:"required,mail"`
	Birthday    string `label:"Birthday" validate:"required,day,adult"`
	Role        string `label:"Role" validate:"required,oneof=Admin User"`
	Status      string `label:"Status" validate:"required,oneof=Active Suspended"`
	ProfileLink string `label:"Profile Link" validate:"omitempty,weburl"`
}

var accountMessages = map[string]string{
	"Name.required":     "Please fill in all required fields (Name, Email, Birthday).",
	"Email.required":    "Please fill in all required fields (Name, Email, Birthday).",
	"Birthday.required": "Please fill in all required fields (Name, Email, Birthday).",
	"Email.mail":        "Please enter a valid email address.",
	"Birthday.day":      "Please enter a valid birthday (YYYY-MM-DD).",
	"Birthday.adult":    "User must be at least 18 years old.",
}

// Account checks a staff account before it is created or saved.
func (val *Validator) Account(a *model.Account) error {
	return val.check(accountForm{
		Name:        trim(a.Name),
		Email:       trim(a.Email),
		Birthday:    trim(a.Birthday),
		Role:        trim(a.Role),
		Status:      trim(a.Status),
		ProfileLink: trim(a.ProfileLink),
	}, accountMessages)
}

type profileForm struct {
	Email       string `label:"Email" validate:"required,mail"`
	ProfileLink string `label:"Profile Link" validate:"omitempty,weburl"`
}

var profileMessages = map[string]string{
	"Email.mail": "Please enter a valid email address.",
}

// Profile checks a user's edit of their own email and profile link.
func (val *Validator) Profile(email, profileLink string) error {
	return val.check(profileForm{
		Email:       trim(email),
		ProfileLink: trim(profileLink),
	}, profileMessages)
}

// PasswordChange is a request to replace the signed-in user's password.
type PasswordChange struct {
	Current string `json:"currentPassword" label:"Current Password" validate:"required"`
	New     string `json:"newPassword" label:"New Password" validate:"required,min=6,nefield=Current"`
	Confirm string `json:"confirmPassword" label:"Confirm Password" validate:"required,eqfield=New"`
}

var passwordMessages = map[string]string{
	"New Password.min":         "Password must be at least 6 characters.",
	"New Password.nefield":     "New password must be different from the current password.",
	"Confirm Password.eqfield": "Passwords do not match.",
}

// Password checks a password change request.
func (val *Validator) Password(p *PasswordChange) error {
	return val.check(p, passwordMessages)
}

// PasswordReset is a request to set a new password with a reset code.
type PasswordReset struct {
	Code    string `json:"code" label:"Reset Code" validate:"required"`
	New     string `json:"newPassword" label:"New Password" validate:"required,min=6"`
	Confirm string `json:"confirmPassword" label:"Confirm Password" validate:"required,eqfield=New"`
}

// Reset checks a password reset request.
func (val *Validator) Reset(p *PasswordReset) error {
	return val.check(p, passwordMessages)
}

// ValidationInput starts the claim process for a found item.
type ValidationInput struct {
	Method string `json:"method" label:"Validation Method" validate:"required,oneof='Photo/Description Match' 'Unique Identifier (ID/Serial)' 'Knowledge-based Questions' 'Proof of Ownership'"`
	Notes  string `json:"notes" label:"Notes" validate:"max=500"`
}

var validationMessages = map[string]string{
	"Validation Method.required": "Please select a validation method.",
	"Validation Method.oneof":    "Please select a valid validation method.",
}

// Validation checks a claim validation request.
func (val *Validator) Validation(in *ValidationInput) error {
	in.Method = trim(in.Method)
	in.Notes = trim(in.Notes)
	return val.check(in, validationMessages)
}

// ClaimInput records who collected a found item.
type ClaimInput struct {
	OwnerName    string `json:"ownerName" label:"Claimer Name" validate:"required"`
	OwnerContact string `json:"ownerContact" label:"Claimer Contact" validate:"required"`
	OwnerEmail   string `json:"ownerEmail" label:"Claimer Email" validate:"omitempty,mail"`
}

var claimMessages = map[string]string{
	"Claimer Name.required":    "Please enter the claimer's name and contact.",
	"Claimer Contact.required": "Please enter the claimer's name and contact.",
}

// Claim checks a claim request.
func (val *Validator) Claim(in *ClaimInput) error {
	in.OwnerName = trim(in.OwnerName)
	in.OwnerContact = trim(in.OwnerContact)
	in.OwnerEmail = trim(in.OwnerEmail)
	return val.check(in, claimMessages)
}
