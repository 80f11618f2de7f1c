package sqlinline

const QCreateLedger = `--sql 3c1f0e2a-8b4d-4f6e-9a7c-5d2b1e0f4a63
create table if not exists announced_transactions (
    transaction_id text primary key,
    announced_at   timestamptz not null default now()
);
`

const QMarkAnnounced = `--sql 9b79c57c-3615-48a2-9d85-3426d5b3f7eb
insert into announced_transactions(transaction_id, announced_at)
values ($1::text, now())
on conflict (transaction_id) do nothing;
`

const QLedgerContains = `--sql 7a08e4f6-cb8a-42c4-bd7f-291d6e913edc
select exists(select 1 from announced_transactions where transaction_id = $1::text);
`
