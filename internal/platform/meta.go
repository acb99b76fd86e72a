package platform

const (
	metaVersion = "1.4"

	RolePlayer1 = "player_1"
	RolePlayer2 = "player_2"

	ParamSymbolPlayer1 = "symbol_player_1"
	ParamSymbolPlayer2 = "symbol_player_2"
)

// Meta describes the game to the owning platform.
type Meta struct {
	Version   string    `json:"alabugaMeta"`
	Info      Info      `json:"info"`
	GameTypes GameTypes `json:"gameTypes"`
}

type Localized struct {
	RU string `json:"ru"`
	EN string `json:"en,omitempty"`
}

type Info struct {
	Title           Localized `json:"title"`
	Description     Localized `json:"desc"`
	LogoURL         Localized `json:"logoUrl"`
	BackgroundColor string    `json:"backColor,omitempty"`
	Version         string    `json:"version"`
}

type GameTypes struct {
	Solo GameType `json:"solo"`
}

type GameType struct {
	MinPlayers int               `json:"minPlayers"`
	MaxPlayers int               `json:"maxPlayers"`
	Supported  bool              `json:"supported"`
	Params     map[string]Param  `json:"params,omitempty"`
	Results    map[string]Result `json:"results"`
	Roles      map[string]Role   `json:"roles"`
}

type Param struct {
	Type     string     `json:"type"`
	Required bool       `json:"required"`
	Title    Localized  `json:"title"`
	Desc     *Localized `json:"desc,omitempty"`
	Default  string     `json:"default,omitempty"`
}

type Result struct {
	Title Localized `json:"title"`
	Type  string    `json:"type"`
}

type Role struct {
	Title      Localized  `json:"title"`
	Desc       *Localized `json:"desc,omitempty"`
	MinPlayers int        `json:"minPlayers"`
	MaxPlayers int        `json:"maxPlayers"`
}

const logoURL = "https://all-t-shirts.ru/goods_images/1720/1883/ru111798/ru111798II00065bdbeb3ad858e74b0c3cb4474261599.jpg"

// NewMeta returns the meta document served on external/meta.
func NewMeta() *Meta {
	return &Meta{
		Version: metaVersion,
		Info: Info{
			Title:           Localized{RU: "Крестики-Нолики", EN: "Tic-Tac-Toe"},
			Description:     Localized{RU: "Игра в крестики-нолики", EN: "Tic-tac-toe game"},
			LogoURL:         Localized{RU: logoURL, EN: logoURL},
			BackgroundColor: "#63df9c",
			Version:         "1.0.0",
		},
		GameTypes: GameTypes{
			Solo: GameType{
				MinPlayers: 2,
				MaxPlayers: 2,
				Supported:  true,
				Params: map[string]Param{
					ParamSymbolPlayer1: symbolParam("Символ игрока 1", "Player 1 symbol",
						"Символ, которым играет игрок 1", "Symbol that player 1 plays with", "X"),
					ParamSymbolPlayer2: symbolParam("Символ игрока 2", "Player 2 symbol",
						"Символ, которым играет игрок 2", "Symbol that player 2 plays with", "O"),
				},
				Results: map[string]Result{
					"win":  {Title: Localized{RU: "Победа", EN: "Win"}, Type: "boolean"},
					"draw": {Title: Localized{RU: "Ничья", EN: "Draw"}, Type: "boolean"},
				},
				Roles: map[string]Role{
					RolePlayer1: playerRole("Игрок 1", "Player 1"),
					RolePlayer2: playerRole("Игрок 2", "Player 2"),
				},
			},
		},
	}
}

func symbolParam(titleRU, titleEN, descRU, descEN, def string) Param {
	return Param{
		Type:     "string",
		Required: true,
		Title:    Localized{RU: titleRU, EN: titleEN},
		Desc:     &Localized{RU: descRU, EN: descEN},
		Default:  def,
	}
}

func playerRole(ru, en string) Role {
	return Role{
		Title:      Localized{RU: ru, EN: en},
		Desc:       &Localized{RU: ru, EN: en},
		MinPlayers: 1,
		MaxPlayers: 1,
	}
}
