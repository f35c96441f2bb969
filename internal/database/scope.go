package database

import "gorm.io/gorm"

// CompanyApplicants 限定查询为某公司名下（未删除职位）的候选人。
func CompanyApplicants(db *gorm.DB, companyID uint) *gorm.DB {
	return db.Model(&Applicant{}).
		Joins("JOIN postings ON postings.id = applicants.posting_id AND postings.deleted_at IS NULL").
		Where("postings.company_id = ?", companyID)
}

// FindApplicant loads an applicant owned by companyID, with its posting.
// Returns gorm.ErrRecordNotFound for applicants of other companies.
func FindApplicant(db *gorm.DB, companyID, applicantID uint) (Applicant, error) {
	var applicant Applicant
	err := CompanyApplicants(db, companyID).
		Preload("Posting").
		Where("applicants.id = ?", applicantID).
		First(&applicant).Error
	return applicant, err
}

// FindPosting loads a posting owned by companyID.
func FindPosting(db *gorm.DB, companyID, postingID uint) (Posting, error) {
	var posting Posting
	err := db.Where("id = ? AND company_id = ?", postingID, companyID).First(&posting).Error
	return posting, err
}
