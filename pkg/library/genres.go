package library

// GenreSection is one top level of the FB2 genre taxonomy.
type GenreSection struct {
	ID     string
	NameEn string
	NameRu string
	Genres []Genre
}

// Genre is one FB2 genre code with its display names.
type Genre struct {
	Code   string
	NameEn string
	NameRu string
}

// genreSections is the FB2 2.x genre taxonomy. Codes follow the FictionBook
// XSD; unknown codes found in files are kept verbatim and displayed as-is.
var genreSections = []GenreSection{
	{ID: "sf", NameEn: "Science Fiction", NameRu: "Фантастика", Genres: []Genre{
		{Code: "sf", NameEn: "Science Fiction", NameRu: "Научная фантастика"},
		{Code: "sf_history", NameEn: "Alternative History", NameRu: "Альтернативная история"},
		{Code: "sf_action", NameEn: "Action SF", NameRu: "Боевая фантастика"},
		{Code: "sf_epic", NameEn: "Epic SF", NameRu: "Эпическая фантастика"},
		{Code: "sf_heroic", NameEn: "Heroic SF", NameRu: "Героическая фантастика"},
		{Code: "sf_detective", NameEn: "Detective SF", NameRu: "Детективная фантастика"},
		{Code: "sf_cyberpunk", NameEn: "Cyberpunk", NameRu: "Киберпанк"},
		{Code: "sf_space", NameEn: "Space SF", NameRu: "Космическая фантастика"},
		{Code: "sf_social", NameEn: "Social SF", NameRu: "Социальная фантастика"},
		{Code: "sf_horror", NameEn: "Horror & Mystic", NameRu: "Ужасы и мистика"},
		{Code: "sf_humor", NameEn: "Humorous SF", NameRu: "Юмористическая фантастика"},
		{Code: "sf_fantasy", NameEn: "Fantasy", NameRu: "Фэнтези"},
	}},
	{ID: "det", NameEn: "Detectives & Thrillers", NameRu: "Детективы и триллеры", Genres: []Genre{
		{Code: "detective", NameEn: "Detective", NameRu: "Детектив"},
		{Code: "det_classic", NameEn: "Classical Detective", NameRu: "Классический детектив"},
		{Code: "det_police", NameEn: "Police Procedural", NameRu: "Полицейский детектив"},
		{Code: "det_action", NameEn: "Action", NameRu: "Боевик"},
		{Code: "det_irony", NameEn: "Ironic Detective", NameRu: "Иронический детектив"},
		{Code: "det_history", NameEn: "Historical Detective", NameRu: "Исторический детектив"},
		{Code: "det_espionage", NameEn: "Espionage Detective", NameRu: "Шпионский детектив"},
		{Code: "det_crime", NameEn: "Crime Detective", NameRu: "Криминальный детектив"},
		{Code: "det_political", NameEn: "Political Detective", NameRu: "Политический детектив"},
		{Code: "det_maniac", NameEn: "Maniac Detective", NameRu: "Маньяки"},
		{Code: "det_hard", NameEn: "Hard-boiled", NameRu: "Крутой детектив"},
		{Code: "thriller", NameEn: "Thriller", NameRu: "Триллер"},
	}},
	{ID: "prose", NameEn: "Prose", NameRu: "Проза", Genres: []Genre{
		{Code: "prose_classic", NameEn: "Classical Prose", NameRu: "Классическая проза"},
		{Code: "prose_history", NameEn: "Historical Prose", NameRu: "Историческая проза"},
		{Code: "prose_contemporary", NameEn: "Contemporary Prose", NameRu: "Современная проза"},
		{Code: "prose_counter", NameEn: "Counterculture", NameRu: "Контркультура"},
		{Code: "prose_rus_classic", NameEn: "Russian Classics", NameRu: "Русская классическая проза"},
		{Code: "prose_su_classics", NameEn: "Soviet Classics", NameRu: "Советская классическая проза"},
	}},
	{ID: "love", NameEn: "Romance", NameRu: "Любовные романы", Genres: []Genre{
		{Code: "love_contemporary", NameEn: "Contemporary Romance", NameRu: "Современные любовные романы"},
		{Code: "love_history", NameEn: "Historical Romance", NameRu: "Исторические любовные романы"},
		{Code: "love_detective", NameEn: "Romantic Suspense", NameRu: "Остросюжетные любовные романы"},
		{Code: "love_short", NameEn: "Short Romance", NameRu: "Короткие любовные романы"},
		{Code: "love_erotica", NameEn: "Erotica", NameRu: "Эротика"},
		{Code: "love_sf", NameEn: "Romantic SF", NameRu: "Любовная фантастика"},
	}},
	{ID: "adv", NameEn: "Adventure", NameRu: "Приключения", Genres: []Genre{
		{Code: "adventure", NameEn: "Adventure", NameRu: "Приключения"},
		{Code: "adv_western", NameEn: "Western", NameRu: "Вестерн"},
		{Code: "adv_history", NameEn: "Historical Adventure", NameRu: "Исторические приключения"},
		{Code: "adv_indian", NameEn: "Indians", NameRu: "Приключения про индейцев"},
		{Code: "adv_maritime", NameEn: "Maritime Fiction", NameRu: "Морские приключения"},
		{Code: "adv_geo", NameEn: "Travel & Geography", NameRu: "Путешествия и география"},
		{Code: "adv_animal", NameEn: "Nature & Animals", NameRu: "Природа и животные"},
	}},
	{ID: "child", NameEn: "Children's", NameRu: "Детская литература", Genres: []Genre{
		{Code: "children", NameEn: "Children's", NameRu: "Детская литература"},
		{Code: "child_tale", NameEn: "Fairy Tales", NameRu: "Сказки"},
		{Code: "child_verse", NameEn: "Verses", NameRu: "Детские стихи"},
		{Code: "child_prose", NameEn: "Children's Prose", NameRu: "Детская проза"},
		{Code: "child_sf", NameEn: "Children's SF", NameRu: "Детская фантастика"},
		{Code: "child_det", NameEn: "Children's Detective", NameRu: "Детские остросюжетные"},
		{Code: "child_adv", NameEn: "Children's Adventure", NameRu: "Детские приключения"},
		{Code: "child_education", NameEn: "Educational", NameRu: "Детская образовательная литература"},
	}},
	{ID: "poetry", NameEn: "Poetry & Drama", NameRu: "Поэзия и драматургия", Genres: []Genre{
		{Code: "poetry", NameEn: "Poetry", NameRu: "Поэзия"},
		{Code: "dramaturgy", NameEn: "Drama", NameRu: "Драматургия"},
	}},
	{ID: "antique", NameEn: "Antique Literature", NameRu: "Старинная литература", Genres: []Genre{
		{Code: "antique", NameEn: "Antique Literature", NameRu: "Старинная литература"},
		{Code: "antique_ant", NameEn: "Antique", NameRu: "Античная литература"},
		{Code: "antique_european", NameEn: "European Antique", NameRu: "Европейская старинная литература"},
		{Code: "antique_russian", NameEn: "Old Russian", NameRu: "Древнерусская литература"},
		{Code: "antique_east", NameEn: "Old East", NameRu: "Древневосточная литература"},
		{Code: "antique_myths", NameEn: "Myths & Legends", NameRu: "Мифы. Легенды. Эпос"},
	}},
	{ID: "science", NameEn: "Science & Education", NameRu: "Наука и образование", Genres: []Genre{
		{Code: "science", NameEn: "Science", NameRu: "Научная литература"},
		{Code: "sci_history", NameEn: "History", NameRu: "История"},
		{Code: "sci_psychology", NameEn: "Psychology", NameRu: "Психология"},
		{Code: "sci_culture", NameEn: "Culture Studies", NameRu: "Культурология"},
		{Code: "sci_religion", NameEn: "Religious Studies", NameRu: "Религиоведение"},
		{Code: "sci_philosophy", NameEn: "Philosophy", NameRu: "Философия"},
		{Code: "sci_politics", NameEn: "Politics", NameRu: "Политика"},
		{Code: "sci_business", NameEn: "Business", NameRu: "Деловая литература"},
		{Code: "sci_juris", NameEn: "Jurisprudence", NameRu: "Юриспруденция"},
		{Code: "sci_linguistic", NameEn: "Linguistics", NameRu: "Языкознание"},
		{Code: "sci_medicine", NameEn: "Medicine", NameRu: "Медицина"},
		{Code: "sci_phys", NameEn: "Physics", NameRu: "Физика"},
		{Code: "sci_math", NameEn: "Mathematics", NameRu: "Математика"},
		{Code: "sci_chem", NameEn: "Chemistry", NameRu: "Химия"},
		{Code: "sci_biology", NameEn: "Biology", NameRu: "Биология"},
		{Code: "sci_tech", NameEn: "Technical", NameRu: "Технические науки"},
	}},
	{ID: "comp", NameEn: "Computers & Internet", NameRu: "Компьютеры и интернет", Genres: []Genre{
		{Code: "computers", NameEn: "Computers", NameRu: "Компьютерная литература"},
		{Code: "comp_www", NameEn: "Internet", NameRu: "Интернет"},
		{Code: "comp_programming", NameEn: "Programming", NameRu: "Программирование"},
		{Code: "comp_hard", NameEn: "Hardware", NameRu: "Компьютерное железо"},
		{Code: "comp_soft", NameEn: "Software", NameRu: "Программы"},
		{Code: "comp_db", NameEn: "Databases", NameRu: "Базы данных"},
		{Code: "comp_osnet", NameEn: "OS & Networks", NameRu: "ОС и сети"},
	}},
	{ID: "ref", NameEn: "Reference", NameRu: "Справочная литература", Genres: []Genre{
		{Code: "reference", NameEn: "Reference", NameRu: "Справочная литература"},
		{Code: "ref_encyc", NameEn: "Encyclopedias", NameRu: "Энциклопедии"},
		{Code: "ref_dict", NameEn: "Dictionaries", NameRu: "Словари"},
		{Code: "ref_ref", NameEn: "Handbooks", NameRu: "Справочники"},
		{Code: "ref_guide", NameEn: "Guidebooks", NameRu: "Руководства"},
	}},
	{ID: "nonf", NameEn: "Nonfiction", NameRu: "Документальная литература", Genres: []Genre{
		{Code: "nonfiction", NameEn: "Nonfiction", NameRu: "Документальная литература"},
		{Code: "nonf_biography", NameEn: "Biography & Memoirs", NameRu: "Биографии и мемуары"},
		{Code: "nonf_publicism", NameEn: "Publicism", NameRu: "Публицистика"},
		{Code: "nonf_criticism", NameEn: "Criticism", NameRu: "Критика"},
		{Code: "design", NameEn: "Art & Design", NameRu: "Искусство и дизайн"},
	}},
	{ID: "religion", NameEn: "Religion & Spirituality", NameRu: "Религия и духовность", Genres: []Genre{
		{Code: "religion", NameEn: "Religion", NameRu: "Религия"},
		{Code: "religion_rel", NameEn: "Religious Literature", NameRu: "Религиозная литература"},
		{Code: "religion_esoterics", NameEn: "Esoterics", NameRu: "Эзотерика"},
		{Code: "religion_self", NameEn: "Self-improvement", NameRu: "Самосовершенствование"},
	}},
	{ID: "humor", NameEn: "Humor", NameRu: "Юмор", Genres: []Genre{
		{Code: "humor", NameEn: "Humor", NameRu: "Юмор"},
		{Code: "humor_anecdote", NameEn: "Anecdotes", NameRu: "Анекдоты"},
		{Code: "humor_prose", NameEn: "Humorous Prose", NameRu: "Юмористическая проза"},
		{Code: "humor_verse", NameEn: "Humorous Verses", NameRu: "Юмористические стихи"},
	}},
	{ID: "home", NameEn: "Home & Family", NameRu: "Дом и семья", Genres: []Genre{
		{Code: "home", NameEn: "Home & Family", NameRu: "Домоводство"},
		{Code: "home_cooking", NameEn: "Cooking", NameRu: "Кулинария"},
		{Code: "home_pets", NameEn: "Pets", NameRu: "Домашние животные"},
		{Code: "home_crafts", NameEn: "Hobbies & Crafts", NameRu: "Хобби и ремесла"},
		{Code: "home_entertain", NameEn: "Entertaining", NameRu: "Развлечения"},
		{Code: "home_health", NameEn: "Health", NameRu: "Здоровье"},
		{Code: "home_garden", NameEn: "Garden", NameRu: "Сад и огород"},
		{Code: "home_diy", NameEn: "Do It Yourself", NameRu: "Сделай сам"},
		{Code: "home_sport", NameEn: "Sports", NameRu: "Спорт"},
	}},
}

var genreByCode = func() map[string]Genre {
	m := make(map[string]Genre)
	for _, sec := range genreSections {
		for _, g := range sec.Genres {
			m[g.Code] = g
		}
	}
	return m
}()

var sectionByID = func() map[string]*GenreSection {
	m := make(map[string]*GenreSection, len(genreSections))
	for i := range genreSections {
		m[genreSections[i].ID] = &genreSections[i]
	}
	return m
}()

// GenreTree returns the full taxonomy in display order.
func GenreTree() []GenreSection {
	return genreSections
}

// GenreSectionByID returns one top-level section, or nil.
func GenreSectionByID(id string) *GenreSection {
	return sectionByID[id]
}

// GenreName returns the display name of code for lang ("ru" gets the
// Russian name, everything else English). Unknown codes come back verbatim
// so books tagged outside the taxonomy still render.
func GenreName(code, lang string) string {
	g, ok := genreByCode[code]
	if !ok {
		return code
	}
	if lang == "ru" {
		return g.NameRu
	}
	return g.NameEn
}

// KnownGenre reports whether code is part of the taxonomy.
func KnownGenre(code string) bool {
	_, ok := genreByCode[code]
	return ok
}
