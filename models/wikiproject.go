package models

// WikiProject ordnet eine Seite einem WikiProjekt zu. Die Tabelle wird von
// einem externen Sync befüllt und hier nur gelesen.
type WikiProject struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	Lang      string `json:"lang" gorm:"column:wp_lang;index:idx_wikiprojects_page;not null;default:'en'"`
	PageTitle string `json:"page_title" gorm:"column:wp_page_title;index:idx_wikiprojects_page;not null"`
	Project   string `json:"project" gorm:"column:wp_project;index;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (WikiProject) TableName() string {
	return "wikiprojects"
}
