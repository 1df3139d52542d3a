package main

const configTemplate = `# Season Configuration
# ====================
# This file defines a season and the slots its games are played in.

# Season defines the date range (both ends inclusive) and how many games
# every team should play.
season:
  name: "Spring 2026"
  start_date: "2026-03-02"
  end_date: "2026-05-08"
  games_per_team: 10

# Divisions and their teams. Teams only play teams in their own division.
# Team names must be unique across all divisions. A team can be listed by
# name alone or with its scheduling constraints:
#
#   blacklist_days   weekdays the team will not play on. The scheduler only
#                    breaks this when no other pairing fits a slot.
#   preferred_time   mostly_early, balanced (default) or mostly_late.
#
# Divisions with fewer than two teams are skipped. Odd-sized divisions give
# each team a bye every round, so their teams play slightly fewer games.
divisions:
  - name: Upper
    teams:
      - name: Hawks
        blacklist_days: [Friday]
        preferred_time: mostly_early
      - name: Owls
        preferred_time: mostly_late
      - Falcons
      - Ravens
  - name: Lower
    teams: [Wrens, Finches, Robins, Larks, Swifts, Terns]

# Slots are every (date, time band, field) combination on the listed days.
# Exactly four time bands are required, earliest first, in 24-hour HH:MM.
slots:
  days: [Monday, Tuesday, Wednesday, Thursday, Friday]
  time_bands: ["18:00", "19:15", "20:30", "21:45"]
  fields: [North Rink, South Rink]

# Strategy determines how pairings are generated.
strategy: round_robin

# Where seasons, slots and generated games are stored. SEASONGEN_DATABASE in
# the environment or a .env file next to this config overrides filename.
database:
  driver: sqlite
  filename: seasongen.db

# Log level (debug, info, warn, error) and format (console or json).
# SEASONGEN_LOG_LEVEL overrides level.
log:
  level: info
  format: console
`
