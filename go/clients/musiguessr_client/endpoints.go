package musiguessr_client

const (
	// API Endpoints
	GamesEndpoint  = "/api/games"
	MusicsEndpoint = "/api/musics"

	// Game actions, appended to GamesEndpoint/{id}
	StartAction  = "/start"
	GuessAction  = "/guess"
	SkipAction   = "/skip"
	FinishAction = "/finish"
)
