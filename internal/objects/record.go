package objects

// Record is a contact row from the record store.
type Record struct {
	ID           int64  `json:"rowId"`
	Name         string `json:"name"`
	Designation  string `json:"designation"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	LinkedInURL  string `json:"linkedinUrl"`
	Organization string `json:"organization"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	OrgSize      string `json:"orgSize"`
	OrgIndustry  string `json:"orgIndustry"`
}

// MaskedRecord is a Record as returned to a user: Email and Phone are nil
// unless the user's tier reveals them.
type MaskedRecord struct {
	ID           int64      `json:"rowId"`
	Name         string     `json:"name"`
	Designation  string     `json:"designation"`
	Email        *string    `json:"email"`
	Phone        *string    `json:"phone"`
	Organization string     `json:"organization"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	Country      string     `json:"country"`
	AccessTier   AccessTier `json:"accessType"`
}

func MaskRecord(r Record, tier AccessTier) MaskedRecord {
	masked := MaskedRecord{
		ID:           r.ID,
		Name:         r.Name,
		Designation:  r.Designation,
		Organization: r.Organization,
		City:         r.City,
		State:        r.State,
		Country:      r.Country,
		AccessTier:   tier,
	}

	if tier.CanSeeEmail() {
		email := r.Email
		masked.Email = &email
	}

	if tier.CanSeePhone() {
		phone := r.Phone
		masked.Phone = &phone
	}

	return masked
}
