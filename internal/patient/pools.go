package patient

// Disease sets per tier. Pools are cumulative: medium adds to common, hard
// adds to both.
var (
	commonDiseases = []string{
		"Influenza",
		"Common cold",
		"Acute bronchitis",
		"Gastroenteritis",
		"Migraine",
		"Urinary tract infection",
		"Allergic rhinitis",
		"Tonsillitis",
		"Conjunctivitis",
	}

	mediumDiseases = []string{
		"Pneumonia",
		"Appendicitis",
		"Type 2 diabetes",
		"Hypothyroidism",
		"Gastritis",
		"Iron-deficiency anemia",
		"Kidney stones",
		"Asthma",
		"Otitis media",
	}

	hardDiseases = []string{
		"Systemic lupus erythematosus",
		"Addison's disease",
		"Pheochromocytoma",
		"Sarcoidosis",
		"Myasthenia gravis",
		"Guillain-Barré syndrome",
		"Cushing's syndrome",
		"Multiple sclerosis",
	}
)

// Pool returns the diseases a game of difficulty d may draw from. The
// returned slice is a fresh copy.
func Pool(d Difficulty) ([]string, error) {
	var sets [][]string
	switch d {
	case Easy:
		sets = [][]string{commonDiseases}
	case Medium:
		sets = [][]string{commonDiseases, mediumDiseases}
	case Hard:
		sets = [][]string{commonDiseases, mediumDiseases, hardDiseases}
	default:
		return nil, ErrInvalidDifficulty
	}

	var pool []string
	for _, s := range sets {
		pool = append(pool, s...)
	}
	return pool, nil
}
