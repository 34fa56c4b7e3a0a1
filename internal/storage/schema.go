package storage

const schema = `
-- The 'documents' table stores every text document of the quiz bank keyed by path.
CREATE TABLE IF NOT EXISTS documents (
    path TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    mod_time DATETIME NOT NULL
);
`
